package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTransition_AllPairs(t *testing.T) {
	allStatuses := []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusFailed, StatusRefunded}

	// Таблица допустимых переходов; всё остальное - конфликт
	allowedEdges := map[Status][]Status{
		StatusPending:   {StatusConfirmed, StatusCancelled, StatusFailed},
		StatusConfirmed: {StatusRefunded},
	}

	isAllowed := func(from, to Status) bool {
		for _, s := range allowedEdges[from] {
			if s == to {
				return true
			}
		}
		return false
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			err := Transition(from, to)
			if isAllowed(from, to) {
				require.NoError(t, err, "%s -> %s must be allowed", from, to)
			} else {
				require.Error(t, err, "%s -> %s must be rejected", from, to)
				require.Contains(t, err.Error(), string(from))
				require.Contains(t, err.Error(), string(to))
			}
		}
	}
}

func TestPayment_Apply(t *testing.T) {
	now := time.Now().UTC()

	t.Run("legal transition updates status and timestamp", func(t *testing.T) {
		p := Payment{Status: StatusPending}
		require.NoError(t, p.Apply(StatusConfirmed, now))
		require.Equal(t, StatusConfirmed, p.Status)
		require.Equal(t, now, p.UpdatedAt)
	})

	t.Run("illegal transition leaves payment unchanged", func(t *testing.T) {
		p := Payment{Status: StatusFailed}
		err := p.Apply(StatusConfirmed, now)
		require.Error(t, err)
		require.Equal(t, StatusFailed, p.Status)
		require.True(t, p.UpdatedAt.IsZero())
	})
}
