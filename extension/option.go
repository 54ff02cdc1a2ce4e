package extension

import "github.com/caseflow/caseflow/model"

type Option func(*Types)

func WithImports(imports model.Imports) Option {
	return func(t *Types) {
		t.imports = imports
	}
}
