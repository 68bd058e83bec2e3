package api

// GenerateRequest overrides the server defaults for one generation. Unset
// fields keep the value loom serve was started with.
type GenerateRequest struct {
	Prompt        string   `json:"prompt"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
	Temperature   *float32 `json:"temperature,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	TopP          *float32 `json:"top_p,omitempty"`
	RepeatPenalty *float32 `json:"repeat_penalty,omitempty"`
	RepeatLastN   *int     `json:"repeat_last_n,omitempty"`
	NKeep         *int     `json:"n_keep,omitempty"`
	IgnoreEOS     *bool    `json:"ignore_eos,omitempty"`
	// Stop sequences end generation once the output ends with any of them.
	Stop   []string `json:"stop,omitempty"`
	Stream *bool    `json:"stream,omitempty"`
}

type GenerateResponse struct {
	ID          string         `json:"id"`
	Object      string         `json:"object"`
	CreatedAt   int64          `json:"created_at"`
	CompletedAt *int64         `json:"completed_at,omitempty"`
	Status      string         `json:"status"`
	Text        string         `json:"text"`
	Tokens      []int          `json:"tokens"`
	StopReason  string         `json:"stop_reason,omitempty"`
	Seed        int64          `json:"seed"`
	Usage       Usage          `json:"usage"`
	Error       *ResponseError `json:"error,omitempty"`
}

type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	EvalCalls        int     `json:"eval_calls"`
	Evictions        int     `json:"evictions"`
	DurationMS       int64   `json:"duration_ms"`
	TokensPerSecond  float64 `json:"tokens_per_second"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

type DeleteResp struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type TokenizeRequest struct {
	Text string `json:"text"`
}

type TokenizeResponse struct {
	Tokens []int    `json:"tokens"`
	Pieces []string `json:"pieces"`
	Count  int      `json:"count"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	VocabSize int    `json:"vocab_size"`
	Running   int    `json:"running"`
}

const (
	statusInProgress = "in_progress"
	statusCompleted  = "completed"
	statusCancelled  = "cancelled"
	statusFailed     = "failed"
)
