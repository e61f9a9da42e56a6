package website

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SSRScriptID is the id of the <script type="application/json"> element that
// carries the serialized state in server-rendered pages.
const SSRScriptID = "ssr-state"

// stateDocument is the wire form of State. Pages are referenced by ID.
type stateDocument struct {
	Page         PageID  `json:"page"`
	RenderedPage *string `json:"renderedPage"`
	PreviousPage *PageID `json:"previousPage"`
	NextPage     *PageID `json:"nextPage"`
}

// EncodeState serializes s. The output escapes <, > and & so it can be
// embedded verbatim in an HTML script element.
func EncodeState(s State) ([]byte, error) {
	if s.Page == nil {
		return nil, &SerializationError{Reason: "state has no page"}
	}
	doc := stateDocument{
		Page:         s.Page.ID,
		RenderedPage: s.RenderedContent,
		PreviousPage: idOf(s.PreviousPage),
		NextPage:     idOf(s.NextPage),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, &SerializationError{Reason: "encode", Err: err}
	}
	return data, nil
}

func idOf(p *Page) *PageID {
	if p == nil {
		return nil
	}
	id := p.ID
	return &id
}

// DecodeState restores a state serialized by EncodeState against catalog c.
// Unknown page IDs, a section as the current page, or neighbours that do not
// match the catalog's pagination are rejected with *SerializationError.
// RenderedContent is returned as found in the payload and is not checked;
// treat it as untrusted when the payload comes from a browser.
func DecodeState(c *Catalog, data []byte) (State, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return State{}, &SerializationError{Reason: "empty payload"}
	}

	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return State{}, &SerializationError{Reason: "malformed payload", Err: err}
	}
	if doc.Page == "" {
		return State{}, &SerializationError{Reason: "payload has no page"}
	}

	page, ok := c.Page(doc.Page)
	if !ok {
		return State{}, &SerializationError{Reason: fmt.Sprintf("unknown page %q", doc.Page)}
	}
	if page.IsSection {
		return State{}, &SerializationError{Reason: fmt.Sprintf("page %q is a section", doc.Page)}
	}

	prev, err := lookupOptional(c, doc.PreviousPage)
	if err != nil {
		return State{}, err
	}
	next, err := lookupOptional(c, doc.NextPage)
	if err != nil {
		return State{}, err
	}

	wantPrev, wantNext := PreviousAndNext(c, page)
	if prev != wantPrev || next != wantNext {
		return State{}, &SerializationError{Reason: fmt.Sprintf("neighbours of %q do not match the catalog", doc.Page)}
	}

	return State{
		Page:            page,
		RenderedContent: doc.RenderedPage,
		PreviousPage:    prev,
		NextPage:        next,
	}, nil
}

func lookupOptional(c *Catalog, id *PageID) (*Page, error) {
	if id == nil {
		return nil, nil
	}
	p, ok := c.Page(*id)
	if !ok {
		return nil, &SerializationError{Reason: fmt.Sprintf("unknown page %q", *id)}
	}
	return p, nil
}

// InitialState returns the state a client starts from: the decoded payload
// when it is present and well formed, otherwise the Home state. The boolean
// reports whether the payload was used. Like DecodeState it keeps the
// payload's rendered HTML.
func InitialState(c *Catalog, payload []byte) (State, bool) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return HomeState(c), false
	}
	s, err := DecodeState(c, payload)
	if err != nil {
		return HomeState(c), false
	}
	return s, true
}

var (
	scriptOpen  = []byte(`<script id="` + SSRScriptID + `" type="application/json">`)
	scriptClose = []byte(`</script>`)
)

// EmbedPayload wraps an encoded state in the script element that
// ExtractPayload looks for.
func EmbedPayload(payload []byte) []byte {
	out := make([]byte, 0, len(scriptOpen)+len(payload)+len(scriptClose))
	out = append(out, scriptOpen...)
	out = append(out, payload...)
	return append(out, scriptClose...)
}

// ExtractPayload returns the serialized state embedded in a server-rendered
// page, or nil when the page carries none.
func ExtractPayload(html []byte) []byte {
	start := bytes.Index(html, scriptOpen)
	if start < 0 {
		return nil
	}
	rest := html[start+len(scriptOpen):]
	end := bytes.Index(rest, scriptClose)
	if end < 0 {
		return nil
	}
	return rest[:end]
}
