package parserkind

// NoopHandler discards the blob and reports an empty Product. Useful for
// hosts whose parser tag hasn't shipped yet: the pipeline still runs
// end-to-end without a real extractor.
type NoopHandler struct{}

func (NoopHandler) Handle(blob []byte) (*Product, error) {
	return &Product{Tag: "noop"}, nil
}

// RawPassthroughHandler returns the blob unmodified as the Product's data,
// for hosts where the consumer downstream of this core does its own
// extraction and only wants the raw bytes handed through.
type RawPassthroughHandler struct{}

func (RawPassthroughHandler) Handle(blob []byte) (*Product, error) {
	return &Product{Tag: "raw-passthrough", Data: blob}, nil
}

func init() {
	Register("noop", NoopHandler{})
	Register("raw-passthrough", RawPassthroughHandler{})
}
