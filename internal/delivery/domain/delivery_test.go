package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTransition_AllPairs(t *testing.T) {
	allStatuses := []Status{StatusPending, StatusAssigned, StatusPickedUp, StatusInTransit, StatusDelivered, StatusCancelled}

	// Таблица допустимых переходов; всё остальное - конфликт
	allowedEdges := map[Status][]Status{
		StatusPending:   {StatusAssigned, StatusCancelled},
		StatusAssigned:  {StatusPickedUp, StatusCancelled},
		StatusPickedUp:  {StatusInTransit, StatusCancelled},
		StatusInTransit: {StatusDelivered},
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

func TestDelivery_Apply(t *testing.T) {
	now := time.Now().UTC()

	t.Run("PICKED_UP stamps pickup time", func(t *testing.T) {
		d := Delivery{Status: StatusAssigned}
		require.NoError(t, d.Apply(StatusPickedUp, now))
		require.Equal(t, StatusPickedUp, d.Status)
		require.NotNil(t, d.PickupTime)
		require.Equal(t, now, *d.PickupTime)
	})

	t.Run("DELIVERED stamps delivery time", func(t *testing.T) {
		d := Delivery{Status: StatusInTransit}
		require.NoError(t, d.Apply(StatusDelivered, now))
		require.Equal(t, StatusDelivered, d.Status)
		require.NotNil(t, d.DeliveryTime)
	})

	t.Run("illegal transition leaves delivery unchanged", func(t *testing.T) {
		d := Delivery{Status: StatusPending}
		err := d.Apply(StatusDelivered, now)
		require.Error(t, err)
		require.Equal(t, StatusPending, d.Status)
		require.Nil(t, d.DeliveryTime)
	})
}

func TestDelivery_Assign(t *testing.T) {
	now := time.Now().UTC()

	t.Run("assign from PENDING sets the driver", func(t *testing.T) {
		d := Delivery{Status: StatusPending}
		require.NoError(t, d.Assign("driver-1", "Ivan", now))
		require.Equal(t, StatusAssigned, d.Status)
		require.True(t, d.IsAssignedDriver("driver-1"))
		require.Equal(t, "Ivan", d.DriverName)
	})

	t.Run("assign on ASSIGNED is a conflict, driver unchanged", func(t *testing.T) {
		d := Delivery{Status: StatusPending}
		require.NoError(t, d.Assign("driver-1", "Ivan", now))

		err := d.Assign("driver-2", "Petr", now)

		require.Error(t, err)
		require.True(t, d.IsAssignedDriver("driver-1"))
	})
}

func TestDelivery_UpdateLocation(t *testing.T) {
	now := time.Now().UTC()

	d := Delivery{Status: StatusPickedUp}
	require.NoError(t, d.UpdateLocation(55.75, 37.61, now))
	require.NotNil(t, d.Location)
	require.Equal(t, 55.75, d.Location.Latitude)

	terminal := Delivery{Status: StatusDelivered}
	require.Error(t, terminal.UpdateLocation(55.75, 37.61, now))
}
