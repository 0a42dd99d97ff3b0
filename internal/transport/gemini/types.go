package gemini

// wireFile matches the file resource shape on the wire.
type wireFile struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// fileWrapper matches the upload response envelope.
type fileWrapper struct {
	File wireFile `json:"file"`
}

// batchOperation matches the long-running operation envelope returned by
// batch create/get calls. Only the fields the poller consumes are mapped.
type batchOperation struct {
	Name     string `json:"name"`
	Metadata struct {
		State  string `json:"state"`
		Output struct {
			ResponsesFile string `json:"responsesFile"`
		} `json:"output"`
	} `json:"metadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// apiError matches the standard error body of the backend.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// createBatchRequest is the body of a batch job start call.
type createBatchRequest struct {
	Batch batchSpec `json:"batch"`
}

type batchSpec struct {
	DisplayName string      `json:"displayName"`
	InputConfig inputConfig `json:"inputConfig"`
}

type inputConfig struct {
	FileName string `json:"fileName"`
}
