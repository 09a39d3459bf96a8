package speech

import "context"

type mockRecognizer struct {
	result Result
	err    error
}

// NewMockRecognizer returns a Recognizer that always answers with the given
// result and error, for wiring demo deployments and tests.
func NewMockRecognizer(result Result, err error) Recognizer {
	return &mockRecognizer{result: result, err: err}
}

func (m *mockRecognizer) Assess(_ context.Context, _ []byte, _ string, _ string) (Result, error) {
	return m.result, m.err
}
