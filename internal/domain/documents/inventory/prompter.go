package inventory

import (
	"context"
	"net/http"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/catalogs"
)

// CodeConfirmationRequired is raised when an operator answer is needed to continue.
const CodeConfirmationRequired = "CONFIRMATION_REQUIRED"

// QuestionKind identifies what the operator is asked.
type QuestionKind string

const (
	QuestionScopeSwitch QuestionKind = "scope_switch"
	QuestionExtraLots   QuestionKind = "extra_lots"
	QuestionPickProduct QuestionKind = "pick_product"
	QuestionUnitCost    QuestionKind = "unit_cost"
	QuestionTotalCost   QuestionKind = "total_cost"
)

// Question is one operator prompt.
type Question struct {
	Kind    QuestionKind `json:"kind"`
	Message string       `json:"message"`
	// Subject is the product code or row handle the question is about.
	Subject    string             `json:"subject,omitempty"`
	Candidates []catalogs.Product `json:"candidates,omitempty"`
}

// Prompter asks the operator for decisions in the middle of an operation.
type Prompter interface {
	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, q Question) (bool, error)

	// Pick asks the operator to choose one of q.Candidates. A nil result
	// means nothing was picked.
	Pick(ctx context.Context, q Question) (*catalogs.Product, error)

	// Ask requests a text answer. ok is false when the operator cancels.
	Ask(ctx context.Context, q Question) (answer string, ok bool, err error)
}

// NewConfirmationRequired reports a question the caller has not answered yet.
func NewConfirmationRequired(q Question) *apperror.AppError {
	return apperror.New(CodeConfirmationRequired, http.StatusConflict, q.Message).
		WithDetail("question", q)
}

// IsConfirmationRequired reports whether err asks for an operator answer.
func IsConfirmationRequired(err error) bool {
	return apperror.HasCode(err, CodeConfirmationRequired)
}

// ScriptedPrompter answers from values supplied up front, for callers that
// cannot hold a conversation open such as HTTP requests. A question without
// a prepared answer fails with CONFIRMATION_REQUIRED.
type ScriptedPrompter struct {
	Confirmations map[QuestionKind]bool

	// ProductID is the pick answer. PickNone answers a pick with "nothing".
	ProductID *id.ID
	PickNone  bool

	// UnitCosts and TotalCosts are consumed in order, one per prompt.
	UnitCosts  []string
	TotalCosts []string
	// Cancel answers cost prompts with a cancel once the answers run out.
	Cancel bool
}

// Confirm implements Prompter.
func (p *ScriptedPrompter) Confirm(_ context.Context, q Question) (bool, error) {
	v, ok := p.Confirmations[q.Kind]
	if !ok {
		return false, NewConfirmationRequired(q)
	}
	return v, nil
}

// Pick implements Prompter.
func (p *ScriptedPrompter) Pick(_ context.Context, q Question) (*catalogs.Product, error) {
	if p.PickNone {
		return nil, nil
	}
	if p.ProductID == nil {
		return nil, NewConfirmationRequired(q)
	}
	for i := range q.Candidates {
		if q.Candidates[i].ID == *p.ProductID {
			return &q.Candidates[i], nil
		}
	}
	return nil, nil
}

// Ask implements Prompter.
func (p *ScriptedPrompter) Ask(_ context.Context, q Question) (string, bool, error) {
	var queue *[]string
	switch q.Kind {
	case QuestionUnitCost:
		queue = &p.UnitCosts
	case QuestionTotalCost:
		queue = &p.TotalCosts
	default:
		return "", false, NewConfirmationRequired(q)
	}
	if len(*queue) == 0 {
		if p.Cancel {
			return "", false, nil
		}
		return "", false, NewConfirmationRequired(q)
	}
	answer := (*queue)[0]
	*queue = (*queue)[1:]
	return answer, true, nil
}

var _ Prompter = (*ScriptedPrompter)(nil)
