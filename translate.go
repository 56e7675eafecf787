package task

// Translator resolves message keys into human-readable strings. The engine
// only consults it for default reason strings when Skip/Fail are called
// without one; hosts with a locale catalog can swap in their own.
type Translator interface {
	Translate(key string, args map[string]any) string
}

// Message keys the engine resolves through the Translator.
const (
	MsgNoReason     = "task.no_reason"
	MsgSkippedFault = "task.fault.skipped"
	MsgFailedFault  = "task.fault.failed"
)

// MapTranslator is a static key/value Translator.
type MapTranslator map[string]string

func (m MapTranslator) Translate(key string, _ map[string]any) string {
	if msg, ok := m[key]; ok {
		return msg
	}
	return key
}

// DefaultTranslator backs reason defaults when no Translator is configured.
var DefaultTranslator Translator = MapTranslator{
	MsgNoReason:     "no reason given",
	MsgSkippedFault: "task skipped",
	MsgFailedFault:  "task failed",
}

func translate(tr Translator, key string) string {
	if tr == nil {
		tr = DefaultTranslator
	}
	return tr.Translate(key, nil)
}
