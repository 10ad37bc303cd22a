package inline

// Document is read-only access to an editor's text.
// Offsets are byte offsets.
type Document interface {
	Len() int
	// Slice returns the text in [start, end). Out-of-range bounds are clamped.
	Slice(start, end int) string
}

// Editor is the host editor an engine serves. The engine calls it only from
// its UI loop.
type Editor interface {
	// ID identifies the editor; one session exists per ID.
	ID() string
	// File returns the path of the edited file, or "" when there is none.
	File() string
	// Carets returns the caret offsets.
	Carets() []int
	Document() Document

	// Insert writes text into the document. It is called once per accept
	// and must not feed the resulting change back into the engine.
	Insert(offset int, text string)
	MoveCaret(offset int)

	// Inlays returns the renderer that draws this editor's virtual text.
	Inlays() Renderer
}

// Renderer draws suggestion elements as virtual text.
type Renderer interface {
	// Render draws e at offset, after anything already rendered there.
	Render(e Element, offset int)
	DisposeAll()
	// Bounds returns the on-screen rectangle of the rendered text, if any.
	Bounds() (Rect, bool)
}

// Rect is an on-screen rectangle in host units.
type Rect struct {
	X, Y          int
	Width, Height int
}

// LinePrefix returns the text between the start of the line containing
// offset and offset itself.
func LinePrefix(doc Document, offset int) string {
	start := 0
	for i := offset - 1; i >= 0; i-- {
		if doc.Slice(i, i+1) == "\n" {
			start = i + 1
			break
		}
	}
	return doc.Slice(start, offset)
}

// StringDocument is a Document over an immutable string.
type StringDocument string

func (d StringDocument) Len() int { return len(d) }

func (d StringDocument) Slice(start, end int) string {
	start = max(0, min(start, len(d)))
	end = max(start, min(end, len(d)))
	return string(d[start:end])
}
