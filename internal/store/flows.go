package store

import (
	"context"
	"fmt"

	"github.com/roach88/waypost/internal/ir"
)

// SaveFlow writes or replaces a persistent flow snapshot.
func (s *Store) SaveFlow(ctx context.Context, snap ir.FlowSnapshot) error {
	history, err := marshalHistory(snap.History)
	if err != nil {
		return fmt.Errorf("save flow: %w", err)
	}
	paths, err := marshalStepPaths(snap.StepPaths)
	if err != nil {
		return fmt.Errorf("save flow: %w", err)
	}
	data, err := marshalData(snap.Data)
	if err != nil {
		return fmt.Errorf("save flow: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flow_states
		(id, flow_type, current_step, history, data, total_steps, step_paths, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_step = excluded.current_step,
			history = excluded.history,
			data = excluded.data,
			total_steps = excluded.total_steps,
			step_paths = excluded.step_paths,
			updated_at = excluded.updated_at
	`,
		snap.ID,
		snap.FlowType,
		snap.CurrentStep,
		history,
		data,
		snap.TotalSteps,
		paths,
		marshalTime(snap.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save flow: %w", err)
	}
	return nil
}

// DeleteFlow removes a flow snapshot. Deleting an unknown id is a no-op.
func (s *Store) DeleteFlow(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM flow_states WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	return nil
}

// LoadFlows returns every persisted flow ordered by last update, oldest first.
func (s *Store) LoadFlows(ctx context.Context) ([]ir.FlowSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, flow_type, current_step, history, data, total_steps, step_paths, updated_at
		FROM flow_states
		ORDER BY updated_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load flows: %w", err)
	}
	defer rows.Close()

	var snaps []ir.FlowSnapshot
	for rows.Next() {
		var (
			snap      ir.FlowSnapshot
			history   string
			data      string
			paths     string
			updatedAt string
		)
		if err := rows.Scan(
			&snap.ID,
			&snap.FlowType,
			&snap.CurrentStep,
			&history,
			&data,
			&snap.TotalSteps,
			&paths,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("load flows: scan: %w", err)
		}

		if snap.History, err = unmarshalHistory(history); err != nil {
			return nil, fmt.Errorf("load flow %s: %w", snap.ID, err)
		}
		if snap.Data, err = unmarshalData(data); err != nil {
			return nil, fmt.Errorf("load flow %s: %w", snap.ID, err)
		}
		if snap.StepPaths, err = unmarshalStepPaths(paths); err != nil {
			return nil, fmt.Errorf("load flow %s: %w", snap.ID, err)
		}
		if snap.UpdatedAt, err = unmarshalTime(updatedAt); err != nil {
			return nil, fmt.Errorf("load flow %s: %w", snap.ID, err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load flows: %w", err)
	}
	return snaps, nil
}
