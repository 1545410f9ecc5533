package fetch

import (
	"bytes"
	"strings"
)

// ScriptDetector spots pages whose listing content is built client-side,
// so a crawler can escalate from the plain fetch to the headless
// renderer instead of silently parsing an empty shell.
type ScriptDetector struct {
	minHTMLBytes int
	keywords     [][]byte
}

// NewScriptDetector builds a detector. A body shorter than minBytes or
// containing any of the keywords is treated as script-rendered.
func NewScriptDetector(minBytes int, keywords []string) *ScriptDetector {
	lowered := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lowered = append(lowered, bytes.ToLower([]byte(kw)))
	}
	return &ScriptDetector{
		minHTMLBytes: minBytes,
		keywords:     lowered,
	}
}

// NeedsJS reports whether the fetched body looks like a script-rendered
// shell rather than server-side HTML.
func (d *ScriptDetector) NeedsJS(body []byte) bool {
	if d == nil {
		return false
	}
	if d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes {
		return true
	}
	if len(body) == 0 || len(d.keywords) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}
