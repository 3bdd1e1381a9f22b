package task

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/kazz187/agileboard/pkg/cerr"
)

// Field is one entry of a Patch. The zero Field leaves the attribute alone;
// Set with a zero value clears it.
type Field[T any] struct {
	set   bool
	value T
}

func Set[T any](v T) Field[T] {
	return Field[T]{set: true, value: v}
}

func (f Field[T]) IsSet() bool {
	return f.set
}

func (f Field[T]) Get() (T, bool) {
	return f.value, f.set
}

func (f Field[T]) apply(dst *T) {
	if f.set {
		*dst = f.value
	}
}

// Patch is a partial update of a task. Id, owner and creation time are not
// patchable.
type Patch struct {
	Title            Field[string]
	Description      Field[string]
	Status           Field[Status]
	Label            Field[string]
	Priority         Field[Priority]
	DueDate          Field[*time.Time]
	ImageURL         Field[string]
	Order            Field[float64]
	Completed        Field[bool]
	CompletedAt      Field[*time.Time]
	CompletionReason Field[CompletionReason]
	Selected         Field[bool]
	UpdatedAt        Field[time.Time]
}

// Apply merges the set fields of p into t.
func (p Patch) Apply(t *Task) {
	p.Title.apply(&t.Title)
	p.Description.apply(&t.Description)
	p.Status.apply(&t.Status)
	p.Label.apply(&t.Label)
	p.Priority.apply(&t.Priority)
	if v, ok := p.DueDate.Get(); ok {
		t.DueDate = cloneTime(v)
	}
	p.ImageURL.apply(&t.ImageURL)
	p.Order.apply(&t.Order)
	p.Completed.apply(&t.Completed)
	if v, ok := p.CompletedAt.Get(); ok {
		t.CompletedAt = cloneTime(v)
	}
	p.CompletionReason.apply(&t.CompletionReason)
	p.Selected.apply(&t.Selected)
	p.UpdatedAt.apply(&t.UpdatedAt)
}

// Persisted returns a copy of p restricted to the attributes stored by the
// remote table.
func (p Patch) Persisted() Patch {
	p.CompletedAt = Field[*time.Time]{}
	return p
}

func (p Patch) IsZero() bool {
	return len(p.values()) == 0
}

// Fields lists the wire names of the set attributes, sorted.
func (p Patch) Fields() []string {
	return slices.Sorted(maps.Keys(p.values()))
}

// Validate checks enum values. It does not check cross-field invariants,
// which depend on the task the patch is applied to.
func (p Patch) Validate() error {
	e := cerr.NewError(cerr.InvalidArgument, "invalid update", nil)
	if v, ok := p.Title.Get(); ok && v == "" {
		e.AddViolation("title", "title must not be empty")
	}
	if v, ok := p.Status.Get(); ok && !v.Valid() {
		e.AddViolation("status", fmt.Sprintf("unknown status %q", v))
	}
	if v, ok := p.Priority.Get(); ok && !v.Valid() {
		e.AddViolation("priority", fmt.Sprintf("unknown priority %q", v))
	}
	if v, ok := p.CompletionReason.Get(); ok && !v.Valid() {
		e.AddViolation("completionReason", fmt.Sprintf("unknown completion reason %q", v))
	}
	if len(e.Details) > 0 {
		return e
	}
	return nil
}

func (p Patch) values() map[string]any {
	m := map[string]any{}
	put(m, "title", p.Title)
	put(m, "description", p.Description)
	put(m, "status", p.Status)
	put(m, "label", p.Label)
	put(m, "priority", p.Priority)
	put(m, "dueDate", p.DueDate)
	put(m, "imageUrl", p.ImageURL)
	put(m, "order", p.Order)
	put(m, "completed", p.Completed)
	put(m, "completedAt", p.CompletedAt)
	put(m, "completionReason", p.CompletionReason)
	put(m, "selected", p.Selected)
	put(m, "updatedAt", p.UpdatedAt)
	return m
}

func put[T any](m map[string]any, name string, f Field[T]) {
	if f.set {
		m[name] = f.value
	}
}

// MarshalJSON writes only the set fields; a cleared optional attribute is
// written as its zero value (null for timestamps).
func (p Patch) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.values())
}

var immutableFields = []string{"id", "ownerId", "createdAt", "isArchived"}

func (p *Patch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Patch
	for name, msg := range raw {
		var err error
		switch name {
		case "title":
			out.Title, err = decode[string](msg)
		case "description":
			out.Description, err = decode[string](msg)
		case "status":
			out.Status, err = decode[Status](msg)
		case "label":
			out.Label, err = decode[string](msg)
		case "priority":
			out.Priority, err = decode[Priority](msg)
		case "dueDate":
			out.DueDate, err = decode[*time.Time](msg)
		case "imageUrl":
			out.ImageURL, err = decode[string](msg)
		case "order":
			out.Order, err = decode[float64](msg)
		case "completed":
			out.Completed, err = decode[bool](msg)
		case "completedAt":
			out.CompletedAt, err = decode[*time.Time](msg)
		case "completionReason":
			out.CompletionReason, err = decode[CompletionReason](msg)
		case "selected":
			out.Selected, err = decode[bool](msg)
		case "updatedAt":
			out.UpdatedAt, err = decode[time.Time](msg)
		default:
			if slices.Contains(immutableFields, name) {
				return fmt.Errorf("field %q cannot be updated", name)
			}
			return fmt.Errorf("unknown field %q", name)
		}
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	*p = out
	return nil
}

func decode[T any](msg json.RawMessage) (Field[T], error) {
	var v T
	if err := json.Unmarshal(msg, &v); err != nil {
		return Field[T]{}, err
	}
	return Set(v), nil
}
