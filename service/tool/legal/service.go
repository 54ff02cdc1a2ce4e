package legal

import (
	"context"
	"reflect"
	"strings"

	"github.com/caseflow/caseflow/model/types"
	"github.com/caseflow/caseflow/service/tool"
)

const name = "tool/legal"

// topic is a keyword-matched entry of the embedded knowledge base.
type topic struct {
	id       string
	keywords []string
	content  string
}

// topics captures the UK practice knowledge the crews rely on for the
// 2024/25 tax year. Figures are updated once per tax year.
var topics = []topic{
	{
		id:       "inheritance_tax",
		keywords: []string{"inheritance", "iht", "tax", "nil-rate", "nil rate", "estate value"},
		content: `UK Inheritance Tax (2024/25):
- Nil-rate band: £325,000 per person; unused band transfers to a surviving spouse.
- Residence nil-rate band: up to £175,000 when the main residence passes to direct descendants, tapered above £2m estates.
- Standard rate: 40% on the value above the available bands.
- Reduced rate: 36% where at least 10% of the net estate is left to charity.
- IHT is normally due within 6 months of the end of the month of death; interest accrues afterwards.
- Forms: IHT400 for taxable estates, IHT205/excepted-estate route for most others.`,
	},
	{
		id:       "probate_process",
		keywords: []string{"probate", "grant", "executor", "letters of administration", "will"},
		content: `Grant of probate process (England & Wales):
- The executor named in the will applies for a grant of probate; without a will an administrator applies for letters of administration.
- Application via HMCTS online service or form PA1P/PA1A; probate fee £300 for estates over £5,000 (2024).
- Inheritance tax forms must be submitted before or with the application.
- Straightforward grants are typically issued in 8-16 weeks; estate administration commonly takes 6-12 months overall.
- Executors owe fiduciary duties and are personally liable for maladministration.`,
	},
	{
		id:       "property_valuation",
		keywords: []string{"property", "valuation", "house", "residence", "rics"},
		content: `Estate property valuation:
- Open-market value at the date of death is required for IHT; HMRC expects a RICS Red Book valuation for properties likely to exceed the nil-rate band.
- The district valuer may challenge valuations; undervaluation risks penalties, overvaluation inflates IHT.
- Sales within 4 years at a lower price may qualify for IHT loss relief on land.`,
	},
	{
		id:       "estate_administration",
		keywords: []string{"administration", "assets", "liabilities", "distribution", "beneficiar"},
		content: `Estate administration duties:
- Collect in assets, settle debts and funeral expenses, pay legacies, then distribute the residue per the will or intestacy rules.
- Statutory advertisements under s.27 Trustee Act 1925 protect executors from unknown creditors (2 month notice period).
- Estate accounts should be prepared and approved by residuary beneficiaries before final distribution.
- Income and gains arising during administration are reported to HMRC separately from the deceased's affairs.`,
	},
	{
		id:       "divorce_settlement",
		keywords: []string{"divorce", "financial settlement", "matrimonial", "spouse", "marriage", "children", "custody"},
		content: `Divorce and financial settlement (England & Wales):
- No-fault divorce under the Divorce, Dissolution and Separation Act 2020; minimum 20 weeks from application to conditional order, 6 further weeks to final order.
- Financial remedy follows s.25 Matrimonial Causes Act 1973 factors: needs, resources, contributions, duration of marriage, welfare of children first.
- Equal division is the starting point for long marriages; shorter marriages may justify departure.
- Child arrangements are resolved separately; the child's welfare is paramount (Children Act 1989).
- A clean-break consent order is required to bar future claims.`,
	},
	{
		id:       "compliance",
		keywords: []string{"compliance", "gdpr", "aml", "data protection", "sra", "client money"},
		content: `Practice compliance:
- Client data handling must satisfy UK GDPR and the Data Protection Act 2018; retain matter files per SRA guidance (typically 6+ years).
- Anti-money-laundering checks are mandatory before acting on estate or matrimonial transfers of value.
- Client money is held per SRA Accounts Rules; interest policy must be published.
- Undertakings given in the course of a matter are personally binding on the solicitor.`,
	},
}

// Service answers queries from an embedded UK legal knowledge base covering
// inheritance tax, probate procedure, estate administration, divorce
// settlement and practice compliance.
type Service struct{}

// New creates the legal knowledge tool.
func New() *Service {
	return &Service{}
}

// Name returns the service name
func (s *Service) Name() string {
	return name
}

// Methods returns the service methods
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:        tool.Method,
			Description: "Looks up UK probate, inheritance tax, divorce and compliance knowledge matching the query.",
			Input:       reflect.TypeOf(&tool.Input{}),
			Output:      reflect.TypeOf(&tool.Output{}),
		},
	}
}

// Method returns the specified method
func (s *Service) Method(methodName string) (types.Executable, error) {
	switch strings.ToLower(methodName) {
	case tool.Method:
		return s.call, nil
	default:
		return nil, types.NewMethodNotFoundError(methodName)
	}
}

func (s *Service) call(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*tool.Input)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*tool.Output)
	if !ok {
		return types.NewInvalidOutputError(out)
	}

	output.Content = Lookup(input.Query)
	return nil
}

// Lookup returns the knowledge entries whose keywords appear in the query.
// An unmatched query returns the full digest so agents always receive the
// baseline figures.
func Lookup(query string) string {
	normalized := strings.ToLower(query)

	var matched []string
	for _, t := range topics {
		for _, keyword := range t.keywords {
			if strings.Contains(normalized, keyword) {
				matched = append(matched, t.content)
				break
			}
		}
	}
	if len(matched) == 0 {
		for _, t := range topics {
			matched = append(matched, t.content)
		}
	}
	return strings.Join(matched, "\n\n")
}
