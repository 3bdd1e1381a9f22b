package task

import "github.com/kazz187/agileboard/internal/rpc"

func ToWire(t *Task) *rpc.Task {
	return &rpc.Task{
		ID:               t.ID,
		OwnerID:          t.OwnerID,
		Title:            t.Title,
		Description:      t.Description,
		Status:           string(t.Status),
		Label:            t.Label,
		Priority:         string(t.Priority),
		DueDate:          cloneTime(t.DueDate),
		ImageURL:         t.ImageURL,
		Order:            t.Order,
		Completed:        t.Completed,
		CompletionReason: string(t.CompletionReason),
		Selected:         t.Selected,
		IsArchived:       t.Archived,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

// FromWire converts a remote row. Unknown status names are mapped through
// ParseStatus so that rows written by older clients still load.
func FromWire(w *rpc.Task) *Task {
	status := Status(w.Status)
	if !status.Valid() {
		if s, err := ParseStatus(w.Status); err == nil {
			status = s
		}
	}
	return &Task{
		ID:               w.ID,
		OwnerID:          w.OwnerID,
		Title:            w.Title,
		Description:      w.Description,
		Status:           status,
		Label:            w.Label,
		Priority:         Priority(w.Priority),
		DueDate:          cloneTime(w.DueDate),
		ImageURL:         w.ImageURL,
		Order:            w.Order,
		Completed:        w.Completed,
		CompletionReason: CompletionReason(w.CompletionReason),
		Selected:         w.Selected,
		Archived:         w.IsArchived,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
	}
}

func ToWireAll(tasks []*Task) []*rpc.Task {
	out := make([]*rpc.Task, len(tasks))
	for i, t := range tasks {
		out[i] = ToWire(t)
	}
	return out
}
