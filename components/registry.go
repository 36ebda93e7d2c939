// Package components expands server-side custom elements inside the
// HTML a script handler returns. It is Rover's answer to needing
// reusable UI fragments without asking every script to hand-roll
// string concatenation, and without pulling the signal/node runtime
// into markup that never needs to be reactive.
//
// A handler writes a small vocabulary of <rv-*> tags in its returned
// HTML:
//
//	<rv-button variant="primary" href="/save">Save changes</rv-button>
//
//	<rv-card>
//	  <rv-slot name="header">Card title</rv-slot>
//	  <p>Card content goes here</p>
//	</rv-card>
//
// ExpanderMiddleware walks that HTML after the handler runs and
// before the Pipeline writes it, replacing each <rv-*> element with
// the output of its registered Renderer. Apps can shadow any built-in
// by calling Register with the same name after RegisterDefaults.
package components

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/roverlang/rover/bridge"
)

// slotPolicy sanitizes slot content before a renderer splices it into
// its output unescaped. renderButton, renderCard and renderModal all
// do this for slots that carry arbitrary nested markup. UGCPolicy
// keeps the formatting tags a handler's HTML is expected to contain
// while stripping script tags, inline event handlers and javascript:
// URLs.
var slotPolicy = bluemonday.UGCPolicy()

// Renderer transforms a component's tag attributes and slot content
// into the HTML that replaces it.
type Renderer func(attrs map[string]string, slots map[string]string) ([]byte, error)

// Registry is the set of components a Pipeline knows how to expand,
// keyed by tag name (e.g. "rv-button").
type Registry struct {
	components map[string]Renderer
}

// NewRegistry creates an empty registry. Call RegisterDefaults to
// populate it with Rover's built-in component set.
func NewRegistry() *Registry {
	return &Registry{components: make(map[string]Renderer)}
}

// Register adds or replaces the renderer for name. name should carry
// the "rv-" prefix so the expander's tag-name check in
// expandComponents recognizes it and so it can never collide with a
// real HTML element.
func (r *Registry) Register(name string, renderer Renderer) {
	r.components[name] = renderer
}

// RegisterDefaults registers Rover's built-in component set:
// rv-button, rv-card, rv-alert, rv-form, rv-input, rv-text, rv-modal
// and rv-progress. Apps override any of these by calling Register
// again with the same name afterward.
func (r *Registry) RegisterDefaults() {
	r.Register("rv-button", renderButton)
	r.Register("rv-card", renderCard)
	r.Register("rv-alert", renderAlert)
	r.Register("rv-form", renderForm)
	r.Register("rv-input", renderInput)
	r.Register("rv-text", renderText)
	r.Register("rv-modal", renderModal)
	r.Register("rv-progress", renderProgressBar)
}

// Render looks up name's renderer and calls it. An unknown name
// returns an error so expandComponents can leave the original tag in
// place rather than silently drop content.
func (r *Registry) Render(name string, attrs map[string]string, slots map[string]string) ([]byte, error) {
	renderer, exists := r.components[name]
	if !exists {
		return nil, fmt.Errorf("component %s not found", name)
	}
	return renderer(attrs, slots)
}

// ExpanderMiddleware expands <rv-*> components in any bridge.Response
// whose content type is text/html. It is a no-op for JSON, redirects,
// and any other non-HTML result a handler returns, so it is safe to
// wrap every route with rather than only the ones that happen to use
// components.
//
// When devMode is true, each expansion is bracketed with
// <!-- rv-button --> / <!-- /rv-button --> comments to make the
// boundary visible while iterating on markup.
func ExpanderMiddleware(registry *Registry, devMode bool) bridge.Middleware {
	return func(next bridge.HandlerFunc) bridge.HandlerFunc {
		return func(ctx *bridge.RequestContext) (any, error) {
			result, err := next(ctx)
			if err != nil {
				return result, err
			}

			resp, ok := result.(*bridge.Response)
			if !ok || !strings.Contains(resp.ContentType(), "text/html") {
				return result, nil
			}
			body, ok := resp.Body()
			if !ok {
				return result, nil
			}

			expanded, err := expandComponents(body, registry, devMode)
			if err != nil {
				// An unexpanded component in the response beats a 500.
				return result, nil
			}
			return resp.WithBody(expanded), nil
		}
	}
}

// expandComponents parses htmlContent, replaces every <rv-*> element
// (depth-first, so nested components expand inside-out) with its
// rendered output, and serializes the result back to HTML. A
// component whose renderer errors is left untouched in place rather
// than aborting the whole response.
func expandComponents(htmlContent []byte, registry *Registry, devMode bool) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return htmlContent, err
	}

	var expand func(*html.Node) error
	expand = func(n *html.Node) error {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			if err := expand(c); err != nil {
				return err
			}
			c = next
		}

		if n.Type == html.ElementNode && strings.HasPrefix(n.Data, "rv-") {
			componentName := n.Data

			attrs := make(map[string]string, len(n.Attr))
			for _, attr := range n.Attr {
				attrs[attr.Key] = attr.Val
			}

			slots := extractSlots(n)
			for name, content := range slots {
				slots[name] = slotPolicy.Sanitize(content)
			}

			rendered, err := registry.Render(n.Data, attrs, slots)
			if err != nil {
				return nil
			}

			renderedDoc, err := html.ParseFragment(bytes.NewReader(rendered), &html.Node{
				Type: html.ElementNode,
				Data: "div",
			})
			if err != nil {
				return nil
			}

			if devMode {
				n.Parent.InsertBefore(&html.Node{
					Type: html.CommentNode,
					Data: fmt.Sprintf(" %s ", componentName),
				}, n)
			}

			for _, newNode := range renderedDoc {
				n.Parent.InsertBefore(newNode, n)
			}

			if devMode {
				n.Parent.InsertBefore(&html.Node{
					Type: html.CommentNode,
					Data: fmt.Sprintf(" /%s ", componentName),
				}, n)
			}

			n.Parent.RemoveChild(n)
			return nil
		}
		return nil
	}

	if err := expand(doc); err != nil {
		return htmlContent, err
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return htmlContent, err
	}
	return buf.Bytes(), nil
}

// extractSlots separates a component's children into named slots
// (<rv-slot name="...">) and an implicit "default" slot holding
// whatever else the component contains.
func extractSlots(n *html.Node) map[string]string {
	slots := make(map[string]string)
	var defaultSlot bytes.Buffer

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "rv-slot" {
			slotName := "default"
			for _, attr := range c.Attr {
				if attr.Key == "name" {
					slotName = attr.Val
					break
				}
			}
			var slotBuf bytes.Buffer
			for sc := c.FirstChild; sc != nil; sc = sc.NextSibling {
				_ = html.Render(&slotBuf, sc)
			}
			slots[slotName] = slotBuf.String()
		} else {
			_ = html.Render(&defaultSlot, c)
		}
	}

	if defaultSlot.Len() > 0 {
		slots["default"] = defaultSlot.String()
	}
	return slots
}

// writeExtraAttrs writes every attribute in attrs not named in skip
// as an escaped HTML attribute, dropping anything starting with "on"
// (inline event handlers have no place in server-rendered markup and
// would defeat bluemonday's job on the surrounding slot content).
func writeExtraAttrs(buf *strings.Builder, attrs map[string]string, skip map[string]bool) {
	for key, value := range attrs {
		if skip[key] || strings.HasPrefix(key, "on") {
			continue
		}
		buf.WriteString(` `)
		buf.WriteString(html.EscapeString(key))
		buf.WriteString(`="`)
		buf.WriteString(html.EscapeString(value))
		buf.WriteString(`"`)
	}
}

// renderButton renders rv-button as an <a> when href is set, or a
// <button> otherwise. variant and size append modifier classes
// (rv-button-primary, rv-button-sm, ...).
func renderButton(attrs map[string]string, slots map[string]string) ([]byte, error) {
	variant := attrs["variant"]
	if variant == "" {
		variant = "default"
	}
	size := attrs["size"]
	href := attrs["href"]
	class := attrs["class"]
	content := slots["default"]

	classes := []string{"rv-button", "rv-button-" + variant}
	if size != "" {
		classes = append(classes, "rv-button-"+size)
	}
	if class != "" {
		classes = append(classes, class)
	}

	var attrBuf strings.Builder
	writeExtraAttrs(&attrBuf, attrs, map[string]bool{"variant": true, "size": true, "class": true, "href": true})

	if href != "" {
		return []byte(fmt.Sprintf(`<a href="%s" class="%s"%s>%s</a>`,
			html.EscapeString(href), strings.Join(classes, " "), attrBuf.String(), content)), nil
	}
	return []byte(fmt.Sprintf(`<button class="%s"%s>%s</button>`,
		strings.Join(classes, " "), attrBuf.String(), content)), nil
}

// renderCard renders rv-card as a container with optional header and
// footer slots around its default body content.
func renderCard(attrs map[string]string, slots map[string]string) ([]byte, error) {
	class := attrs["class"]
	header, footer, content := slots["header"], slots["footer"], slots["default"]

	var buf bytes.Buffer
	buf.WriteString(`<div class="rv-card`)
	if class != "" {
		buf.WriteString(" " + class)
	}
	buf.WriteString(`">`)

	if header != "" {
		buf.WriteString(`<div class="rv-card-header">` + header + `</div>`)
	}
	buf.WriteString(`<div class="rv-card-body">` + content + `</div>`)
	if footer != "" {
		buf.WriteString(`<div class="rv-card-footer">` + footer + `</div>`)
	}
	buf.WriteString(`</div>`)
	return buf.Bytes(), nil
}

// renderAlert renders rv-alert, optionally dismissible via Alpine.js
// x-data/x-show/@click attributes (the page must load Alpine for the
// close button to work).
func renderAlert(attrs map[string]string, slots map[string]string) ([]byte, error) {
	variant := attrs["variant"]
	if variant == "" {
		variant = "info"
	}
	dismissible := attrs["dismissible"] == "true"
	class := attrs["class"]
	content := slots["default"]

	var buf bytes.Buffer
	buf.WriteString(`<div class="rv-alert rv-alert-` + variant)
	if class != "" {
		buf.WriteString(" " + class)
	}
	buf.WriteString(`"`)
	if dismissible {
		buf.WriteString(` x-data="{ show: true }" x-show="show"`)
	}
	buf.WriteString(`>` + content)
	if dismissible {
		buf.WriteString(`<button type="button" class="rv-alert-close" @click="show = false">&times;</button>`)
	}
	buf.WriteString(`</div>`)
	return buf.Bytes(), nil
}

// renderForm renders rv-form. For any non-GET method it adds a hidden
// csrf_token input whose value is the literal template placeholder
// {{ .csrf_token }}; nothing in this package substitutes a real token
// for it.
func renderForm(attrs map[string]string, slots map[string]string) ([]byte, error) {
	action := attrs["action"]
	method := attrs["method"]
	if method == "" {
		method = "POST"
	}
	class := attrs["class"]
	content := slots["default"]

	var buf bytes.Buffer
	buf.WriteString(`<form`)
	if action != "" {
		buf.WriteString(fmt.Sprintf(` action="%s"`, html.EscapeString(action)))
	}
	buf.WriteString(fmt.Sprintf(` method="%s"`, method))
	if class != "" {
		buf.WriteString(fmt.Sprintf(` class="rv-form %s"`, class))
	} else {
		buf.WriteString(` class="rv-form"`)
	}
	buf.WriteString(`>`)

	if !strings.EqualFold(method, "GET") {
		buf.WriteString(`<input type="hidden" name="csrf_token" value="{{ .csrf_token }}">`)
	}
	buf.WriteString(content)
	buf.WriteString(`</form>`)
	return buf.Bytes(), nil
}

// renderInput renders rv-input as a labeled <input>, deriving an
// aria-label from whichever of label, placeholder, or name is
// present so the field never ends up unlabeled for assistive tech.
func renderInput(attrs map[string]string, slots map[string]string) ([]byte, error) {
	inputType := attrs["type"]
	if inputType == "" {
		inputType = "text"
	}
	name := attrs["name"]
	label := attrs["label"]
	placeholder := attrs["placeholder"]
	_, required := attrs["required"]
	_, disabled := attrs["disabled"]
	_, readonly := attrs["readonly"]
	_, checked := attrs["checked"]
	class := attrs["class"]
	value := attrs["value"]

	var buf bytes.Buffer
	buf.WriteString(`<div class="rv-input-group">`)

	if label != "" {
		buf.WriteString(fmt.Sprintf(`<label for="%s" class="rv-label">%s`, html.EscapeString(name), html.EscapeString(label)))
		if required {
			buf.WriteString(` <span class="rv-required">*</span>`)
		}
		buf.WriteString(`</label>`)
	}

	buf.WriteString(`<input`)
	buf.WriteString(fmt.Sprintf(` type="%s" id="%s" name="%s"`, inputType, html.EscapeString(name), html.EscapeString(name)))

	switch {
	case label != "":
		buf.WriteString(fmt.Sprintf(` aria-label="%s"`, html.EscapeString(label)))
	case placeholder != "":
		buf.WriteString(fmt.Sprintf(` aria-label="%s"`, html.EscapeString(placeholder)))
	case name != "":
		ariaLabel := strings.NewReplacer("_", " ", "-", " ").Replace(name)
		buf.WriteString(fmt.Sprintf(` aria-label="%s"`, html.EscapeString(ariaLabel)))
	default:
		buf.WriteString(fmt.Sprintf(` aria-label="%s input"`, inputType))
	}

	if placeholder != "" {
		buf.WriteString(fmt.Sprintf(` placeholder="%s"`, html.EscapeString(placeholder)))
	}
	if value != "" {
		buf.WriteString(fmt.Sprintf(` value="%s"`, html.EscapeString(value)))
	}
	if required {
		buf.WriteString(` required`)
	}
	if disabled {
		buf.WriteString(` disabled`)
	}
	if readonly {
		buf.WriteString(` readonly`)
	}
	if checked && (inputType == "checkbox" || inputType == "radio") {
		buf.WriteString(` checked`)
	}
	if class != "" {
		buf.WriteString(fmt.Sprintf(` class="rv-input %s"`, class))
	} else {
		buf.WriteString(` class="rv-input"`)
	}
	buf.WriteString(`></div>`)
	return buf.Bytes(), nil
}

// renderText renders rv-text, HTML-escaping its content so it can
// carry untrusted strings (e.g. a user's display name) directly
// without callers needing to remember to escape it themselves.
func renderText(attrs map[string]string, slots map[string]string) ([]byte, error) {
	var buf strings.Builder
	buf.WriteString(`<span class="rv-text"`)
	writeExtraAttrs(&buf, attrs, map[string]bool{"class": true})
	buf.WriteString(`>`)
	buf.WriteString(html.EscapeString(slots["default"]))
	buf.WriteString(`</span>`)
	return []byte(buf.String()), nil
}

// renderModal renders rv-modal as an ARIA dialog with header, body
// and optional footer slots. The title attribute both labels the
// dialog and seeds the ids linking it to aria-labelledby.
func renderModal(attrs map[string]string, slots map[string]string) ([]byte, error) {
	var buf strings.Builder
	title := attrs["title"]
	if title == "" {
		title = "Modal"
	}
	modalID := fmt.Sprintf("modal-%d", hashString(title))
	titleID := fmt.Sprintf("modal-title-%d", hashString(title))

	buf.WriteString(`<div class="rv-modal" role="dialog" aria-modal="true" aria-labelledby="` + titleID + `"`)
	writeExtraAttrs(&buf, attrs, map[string]bool{"title": true, "class": true})
	buf.WriteString(` id="` + modalID + `">`)

	buf.WriteString(`<div class="rv-modal-header"><h2 id="` + titleID + `">` + html.EscapeString(title) + `</h2>`)
	if headerSlot, ok := slots["header"]; ok {
		buf.WriteString(headerSlot)
	}
	buf.WriteString(`</div>`)

	buf.WriteString(`<div class="rv-modal-body">` + slots["default"])
	if bodySlot, ok := slots["body"]; ok {
		buf.WriteString(bodySlot)
	}
	buf.WriteString(`</div>`)

	if footerSlot, ok := slots["footer"]; ok {
		buf.WriteString(`<div class="rv-modal-footer">` + footerSlot + `</div>`)
	}
	buf.WriteString(`</div>`)
	return []byte(buf.String()), nil
}

// renderProgressBar renders rv-progress as an ARIA progressbar, with
// the fill width computed from value/max rather than left to the
// caller to keep in sync with the displayed percentage.
func renderProgressBar(attrs map[string]string, slots map[string]string) ([]byte, error) {
	var buf strings.Builder
	value, max := attrs["value"], attrs["max"]
	if value == "" {
		value = "0"
	}
	if max == "" {
		max = "100"
	}

	buf.WriteString(`<div class="rv-progress" role="progressbar"`)
	buf.WriteString(fmt.Sprintf(` aria-valuenow="%s" aria-valuemin="0" aria-valuemax="%s"`,
		html.EscapeString(value), html.EscapeString(max)))
	writeExtraAttrs(&buf, attrs, map[string]bool{"value": true, "max": true, "class": true})
	buf.WriteString(`>`)

	valueInt, _ := strconv.Atoi(value)
	maxInt, _ := strconv.Atoi(max)
	percentage := 0
	if maxInt > 0 {
		percentage = (valueInt * 100) / maxInt
	}

	buf.WriteString(fmt.Sprintf(`<div class="rv-progress-fill" style="width: %d%%">`, percentage))
	if label := slots["default"]; label != "" {
		buf.WriteString(`<span class="rv-progress-label">` + label + `</span>`)
	}
	buf.WriteString(`</div></div>`)
	return []byte(buf.String()), nil
}

// hashString produces a short, stable, non-cryptographic id suffix
// for components (rv-modal) that need to derive element ids from
// their attributes rather than take an explicit id attribute.
func hashString(s string) int {
	h := 0
	for _, c := range s {
		h = h*31 + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}

// ComponentsCSS returns baseline styling for the default component
// set. Apps include it once in their layout and override classes as
// needed; every selector is prefixed rv- to avoid colliding with
// app-authored CSS.
func ComponentsCSS() string {
	return `
.rv-button {
	display: inline-block;
	padding: 0.5rem 1rem;
	border: 1px solid #ddd;
	border-radius: 0.25rem;
	background: white;
	cursor: pointer;
	text-decoration: none;
	color: inherit;
}

.rv-button-primary {
	background: #007bff;
	color: white;
	border-color: #007bff;
}

.rv-button-danger {
	background: #dc3545;
	color: white;
	border-color: #dc3545;
}

.rv-card {
	border: 1px solid #ddd;
	border-radius: 0.25rem;
	margin-bottom: 1rem;
}

.rv-card-header {
	padding: 0.75rem 1rem;
	background: #f7f7f7;
	border-bottom: 1px solid #ddd;
}

.rv-card-body {
	padding: 1rem;
}

.rv-card-footer {
	padding: 0.75rem 1rem;
	background: #f7f7f7;
	border-top: 1px solid #ddd;
}

.rv-alert {
	padding: 0.75rem 1rem;
	margin-bottom: 1rem;
	border: 1px solid transparent;
	border-radius: 0.25rem;
}

.rv-alert-info {
	background: #d1ecf1;
	border-color: #bee5eb;
	color: #0c5460;
}

.rv-alert-success {
	background: #d4edda;
	border-color: #c3e6cb;
	color: #155724;
}

.rv-alert-warning {
	background: #fff3cd;
	border-color: #ffeeba;
	color: #856404;
}

.rv-alert-danger {
	background: #f8d7da;
	border-color: #f5c6cb;
	color: #721c24;
}

.rv-form {
	margin-bottom: 1rem;
}

.rv-input-group {
	margin-bottom: 1rem;
}

.rv-label {
	display: block;
	margin-bottom: 0.25rem;
	font-weight: 500;
}

.rv-input {
	display: block;
	width: 100%;
	padding: 0.375rem 0.75rem;
	border: 1px solid #ced4da;
	border-radius: 0.25rem;
}

.rv-required {
	color: #dc3545;
}

.rv-modal {
	border: 1px solid #ddd;
	border-radius: 0.25rem;
	background: white;
	max-width: 32rem;
	margin: 2rem auto;
}

.rv-modal-header, .rv-modal-footer {
	padding: 0.75rem 1rem;
	background: #f7f7f7;
}

.rv-modal-body {
	padding: 1rem;
}

.rv-progress {
	background: #e9ecef;
	border-radius: 0.25rem;
	overflow: hidden;
	height: 1rem;
}

.rv-progress-fill {
	background: #007bff;
	height: 100%;
	transition: width 0.2s ease;
}
`
}
