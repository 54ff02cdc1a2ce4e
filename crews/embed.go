// Package crews ships the built-in case analysis crews as embedded YAML.
package crews

import (
	_ "embed"
	"fmt"

	"github.com/caseflow/caseflow/model"
	crewdao "github.com/caseflow/caseflow/service/dao/crew"
)

// Built-in crew names.
const (
	Probate = "probate"
	Divorce = "divorce"
)

//go:embed probate.yaml
var probateYAML []byte

//go:embed divorce.yaml
var divorceYAML []byte

// Register compiles the embedded crew definitions and installs them into the
// DAO so that Lookup resolves them by name.
func Register(dao *crewdao.Service) (map[string]*model.Crew, error) {
	registered := make(map[string]*model.Crew, 2)
	for _, encoded := range [][]byte{probateYAML, divorceYAML} {
		crew, err := dao.Upsert(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to register built-in crew: %w", err)
		}
		registered[crew.Name] = crew
	}
	return registered, nil
}
