package types

import "time"

/*
ResultRecord is the uniform outcome of one dispatched query. It is
created by the dispatcher, consumed exactly once by the presenter, and
never cached beyond the memory store.
*/
type ResultRecord struct {
	Query    string
	Response string
	Elapsed  time.Duration
	// Token usage as reported by the backend; zero when the backend does
	// not report it. Diagnostic only, never used for control flow.
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	Truncated        bool
}
