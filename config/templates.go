package config

const (
	DefaultTemplateLeftDelim  = "{{"
	DefaultTemplateRightDelim = "}}"
)

// GoTemplate controls how property values holding Go templates are rendered
type GoTemplate struct {
	LeftDelim  string
	RightDelim string
}

// Validate returns a copy with both delimiters set, falling back to the standard pair
// unless both were configured
func (gt GoTemplate) Validate() GoTemplate {
	if gt.LeftDelim == "" || gt.RightDelim == "" {
		return GoTemplate{LeftDelim: DefaultTemplateLeftDelim, RightDelim: DefaultTemplateRightDelim}
	}
	return gt
}
