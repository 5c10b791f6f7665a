package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/auth/authctx"
	"github.com/shestoi/GoFoodSaga/internal/delivery/domain"
	"github.com/shestoi/GoFoodSaga/internal/delivery/repository/memory"
	"github.com/shestoi/GoFoodSaga/internal/delivery/service"
	"github.com/shestoi/GoFoodSaga/internal/delivery/service/mocks"
	"github.com/shestoi/GoFoodSaga/internal/events"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// customerCtx возвращает контекст с аутентифицированным покупателем
func customerCtx(userID string) context.Context {
	return authctx.WithUser(context.Background(), authctx.User{ID: userID, Role: authctx.RoleCustomer})
}

func driverCtx(userID string) context.Context {
	return authctx.WithUser(context.Background(), authctx.User{ID: userID, Role: authctx.RoleDriver})
}

func adminCtx(userID string) context.Context {
	return authctx.WithUser(context.Background(), authctx.User{ID: userID, Role: authctx.RoleAdmin})
}

type deps struct {
	repo    *memory.Repository
	order   *mocks.OrderClient
	profile *mocks.ProfileClient
}

func newService(t *testing.T) (*service.DeliveryService, *deps) {
	t.Helper()
	d := &deps{
		repo:    memory.NewRepository(),
		order:   mocks.NewOrderClient(t),
		profile: mocks.NewProfileClient(t),
	}
	return service.NewDeliveryService(d.repo, d.order, d.profile, zap.NewNop()), d
}

// orderExists настраивает Order Service на существующий заказ
func orderExists(d *deps, orderID, customerID string) {
	d.order.On("GetOrderSummary", mock.Anything, orderID).
		Return(service.OrderSummary{OrderID: orderID, CustomerID: customerID, Status: "READY"}, nil).Maybe()
}

// createPending создаёт доставку в PENDING для заказа order-1 покупателя user-1
func createPending(t *testing.T, svc *service.DeliveryService, d *deps) domain.Delivery {
	t.Helper()
	orderExists(d, "order-1", "user-1")
	delivery, err := svc.CreateDelivery(context.Background(), service.CreateDeliveryInput{
		OrderID:           "order-1",
		CustomerID:        "user-1",
		RestaurantID:      "rest-1",
		DeliveryAddressID: "addr-1",
	})
	require.NoError(t, err)
	return delivery
}

// assignDriver проводит доставку до ASSIGNED на водителя driver-1
func assignDriver(t *testing.T, svc *service.DeliveryService, d *deps, deliveryID string) domain.Delivery {
	t.Helper()
	d.profile.On("GetDriver", mock.Anything, "driver-1").
		Return(service.Driver{ID: "driver-1", Name: "Ivan"}, nil).Maybe()
	delivery, err := svc.AssignDriver(adminCtx("admin-1"), deliveryID, "driver-1")
	require.NoError(t, err)
	return delivery
}

func TestDeliveryService_CreateDelivery(t *testing.T) {
	t.Run("success: delivery starts in PENDING without a driver", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)

		// Act
		delivery := createPending(t, svc, d)

		// Assert
		require.Equal(t, domain.StatusPending, delivery.Status)
		require.Nil(t, delivery.DriverID)

		stored, err := d.repo.GetByOrderID(context.Background(), "order-1")
		require.NoError(t, err)
		require.Equal(t, delivery.ID, stored.ID)
	})

	t.Run("error: second delivery for the same order is a conflict", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		createPending(t, svc, d)

		// Act
		_, err := svc.CreateDelivery(context.Background(), service.CreateDeliveryInput{
			OrderID:           "order-1",
			CustomerID:        "user-1",
			RestaurantID:      "rest-1",
			DeliveryAddressID: "addr-1",
		})

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsConflict(err))
	})

	t.Run("error: unknown order", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		d.order.On("GetOrderSummary", mock.Anything, "ghost").
			Return(service.OrderSummary{}, apperr.NotFound("order ghost not found"))

		// Act
		_, err := svc.CreateDelivery(context.Background(), service.CreateDeliveryInput{
			OrderID:           "ghost",
			CustomerID:        "user-1",
			RestaurantID:      "rest-1",
			DeliveryAddressID: "addr-1",
		})

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsNotFound(err))
	})

	t.Run("error: order service down rejects the delivery", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		d.order.On("GetOrderSummary", mock.Anything, "order-1").
			Return(service.OrderSummary{}, errors.New("connection refused"))

		// Act
		_, err := svc.CreateDelivery(context.Background(), service.CreateDeliveryInput{
			OrderID:           "order-1",
			CustomerID:        "user-1",
			RestaurantID:      "rest-1",
			DeliveryAddressID: "addr-1",
		})

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsUnavailable(err))
	})
}

func TestDeliveryService_AssignDriver(t *testing.T) {
	t.Run("success: assignment publishes delivery.assigned with the driver name", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		created := createPending(t, svc, d)
		d.profile.On("GetDriver", mock.Anything, "driver-1").
			Return(service.Driver{ID: "driver-1", Name: "Ivan"}, nil)

		// Act
		delivery, err := svc.AssignDriver(adminCtx("admin-1"), created.ID, "driver-1")

		// Assert
		require.NoError(t, err)
		require.Equal(t, domain.StatusAssigned, delivery.Status)
		require.NotNil(t, delivery.DriverID)
		require.Equal(t, "driver-1", *delivery.DriverID)
		require.Equal(t, "Ivan", delivery.DriverName)

		pending, err := d.repo.GetPendingOutboxEvents(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		require.Equal(t, events.TopicDeliveryAssigned, pending[0].Topic)
		require.Equal(t, "order-1", pending[0].AggregateID)
	})

	t.Run("error: customer cannot assign drivers", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		created := createPending(t, svc, d)

		// Act
		_, err := svc.AssignDriver(customerCtx("user-1"), created.ID, "driver-1")

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsUnauthorized(err))
	})

	t.Run("error: unknown driver", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		created := createPending(t, svc, d)
		d.profile.On("GetDriver", mock.Anything, "ghost").
			Return(service.Driver{}, apperr.NotFound("driver ghost not found"))

		// Act
		_, err := svc.AssignDriver(adminCtx("admin-1"), created.ID, "ghost")

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsNotFound(err))
	})

	t.Run("error: second assignment is a conflict, driver unchanged", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		created := createPending(t, svc, d)
		assignDriver(t, svc, d, created.ID)
		d.profile.On("GetDriver", mock.Anything, "driver-2").
			Return(service.Driver{ID: "driver-2", Name: "Petr"}, nil)

		// Act
		_, err := svc.AssignDriver(adminCtx("admin-1"), created.ID, "driver-2")

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsConflict(err))

		stored, getErr := d.repo.GetByID(context.Background(), created.ID)
		require.NoError(t, getErr)
		require.Equal(t, "driver-1", *stored.DriverID)
	})
}

// TestDeliveryService_AssignDriver_Race проверяет, что при одновременном
// назначении двух водителей побеждает ровно один: CAS по version превращает
// проигравшего в Conflict
func TestDeliveryService_AssignDriver_Race(t *testing.T) {
	// Arrange
	svc, d := newService(t)
	created := createPending(t, svc, d)

	const goroutines = 16
	d.profile.On("GetDriver", mock.Anything, "driver-a").
		Return(service.Driver{ID: "driver-a", Name: "Driver A"}, nil).Maybe()
	d.profile.On("GetDriver", mock.Anything, "driver-b").
		Return(service.Driver{ID: "driver-b", Name: "Driver B"}, nil).Maybe()

	var (
		mu        sync.Mutex
		assigned  int
		conflicts int
	)

	// Act
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		driverID := "driver-a"
		if i%2 == 1 {
			driverID = "driver-b"
		}
		wg.Add(1)
		go func(driverID string) {
			defer wg.Done()
			_, err := svc.AssignDriver(adminCtx("admin-1"), created.ID, driverID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				assigned++
			case apperr.IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(driverID)
	}
	wg.Wait()

	// Assert
	require.Equal(t, 1, assigned)
	require.Equal(t, goroutines-1, conflicts)

	stored, err := d.repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusAssigned, stored.Status)
	require.NotNil(t, stored.DriverID)
}

func TestDeliveryService_DriverTransitions(t *testing.T) {
	t.Run("success: pickup, transit and delivered each publish their event", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		created := createPending(t, svc, d)
		assignDriver(t, svc, d, created.ID)

		// Act
		pickedUp, err := svc.ConfirmPickup(driverCtx("driver-1"), created.ID)
		require.NoError(t, err)
		inTransit, err := svc.StartTransit(driverCtx("driver-1"), created.ID)
		require.NoError(t, err)
		delivered, err := svc.ConfirmDelivery(driverCtx("driver-1"), created.ID)
		require.NoError(t, err)

		// Assert
		require.Equal(t, domain.StatusPickedUp, pickedUp.Status)
		require.NotNil(t, pickedUp.PickupTime)
		require.Equal(t, domain.StatusInTransit, inTransit.Status)
		require.Equal(t, domain.StatusDelivered, delivered.Status)
		require.NotNil(t, delivered.DeliveryTime)

		pending, err := d.repo.GetPendingOutboxEvents(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, pending, 4)
		require.Equal(t, events.TopicDeliveryAssigned, pending[0].Topic)
		require.Equal(t, events.TopicDeliveryPickedUp, pending[1].Topic)
		require.Equal(t, events.TopicDeliveryInTransit, pending[2].Topic)
		require.Equal(t, events.TopicDeliveryDelivered, pending[3].Topic)
	})

	t.Run("error: another driver cannot move the delivery", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		created := createPending(t, svc, d)
		assignDriver(t, svc, d, created.ID)

		// Act
		_, err := svc.ConfirmPickup(driverCtx("driver-2"), created.ID)

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsUnauthorized(err))
	})

	t.Run("error: delivered straight from ASSIGNED is illegal", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		created := createPending(t, svc, d)
		assignDriver(t, svc, d, created.ID)

		// Act
		_, err := svc.ConfirmDelivery(driverCtx("driver-1"), created.ID)

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsConflict(err))
	})
}

func TestDeliveryService_UpdateLocation(t *testing.T) {
	t.Run("success: assigned driver updates the position", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		created := createPending(t, svc, d)
		assignDriver(t, svc, d, created.ID)

		// Act
		delivery, err := svc.UpdateLocation(driverCtx("driver-1"), service.UpdateLocationInput{
			DeliveryID: created.ID,
			Latitude:   55.7558,
			Longitude:  37.6173,
		})

		// Assert
		require.NoError(t, err)
		require.NotNil(t, delivery.Location)
		require.InDelta(t, 55.7558, delivery.Location.Latitude, 1e-9)

		// Позиция не порождает событий
		pending, err := d.repo.GetPendingOutboxEvents(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, pending, 1) // только delivery.assigned
	})

	t.Run("error: coordinates out of range", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		created := createPending(t, svc, d)
		assignDriver(t, svc, d, created.ID)

		// Act
		_, err := svc.UpdateLocation(driverCtx("driver-1"), service.UpdateLocationInput{
			DeliveryID: created.ID,
			Latitude:   91,
			Longitude:  0,
		})

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsValidation(err))
	})

	t.Run("error: location of a pending delivery cannot be updated", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		created := createPending(t, svc, d)

		// Act
		_, err := svc.UpdateLocation(adminCtx("admin-1"), service.UpdateLocationInput{
			DeliveryID: created.ID,
			Latitude:   55.7558,
			Longitude:  37.6173,
		})

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsConflict(err))
	})
}

func TestDeliveryService_GetDelivery(t *testing.T) {
	t.Run("customer, assigned driver and admin can read, stranger cannot", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		created := createPending(t, svc, d)
		assignDriver(t, svc, d, created.ID)

		// Act / Assert
		_, err := svc.GetDelivery(customerCtx("user-1"), created.ID)
		require.NoError(t, err)

		_, err = svc.GetDelivery(driverCtx("driver-1"), created.ID)
		require.NoError(t, err)

		_, err = svc.GetDelivery(adminCtx("admin-1"), created.ID)
		require.NoError(t, err)

		_, err = svc.GetDelivery(customerCtx("stranger"), created.ID)
		require.Error(t, err)
		require.True(t, apperr.IsUnauthorized(err))
	})

	t.Run("error: unknown delivery", func(t *testing.T) {
		// Arrange
		svc, _ := newService(t)

		// Act
		_, err := svc.GetDelivery(adminCtx("admin-1"), "ghost")

		// Assert
		require.Error(t, err)
		require.True(t, apperr.IsNotFound(err))
	})
}

func TestDeliveryService_CancelByOrder(t *testing.T) {
	t.Run("pending delivery of a cancelled order is cancelled", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		created := createPending(t, svc, d)

		// Act
		err := svc.CancelByOrder(context.Background(), "order-1")

		// Assert
		require.NoError(t, err)
		stored, getErr := d.repo.GetByID(context.Background(), created.ID)
		require.NoError(t, getErr)
		require.Equal(t, domain.StatusCancelled, stored.Status)
	})

	t.Run("no delivery for the order is a no-op", func(t *testing.T) {
		// Arrange
		svc, _ := newService(t)

		// Act / Assert
		require.NoError(t, svc.CancelByOrder(context.Background(), "ghost"))
	})

	t.Run("delivery in transit stays on the road", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		created := createPending(t, svc, d)
		assignDriver(t, svc, d, created.ID)
		_, err := svc.ConfirmPickup(driverCtx("driver-1"), created.ID)
		require.NoError(t, err)
		_, err = svc.StartTransit(driverCtx("driver-1"), created.ID)
		require.NoError(t, err)

		// Act
		err = svc.CancelByOrder(context.Background(), "order-1")

		// Assert
		require.NoError(t, err)
		stored, getErr := d.repo.GetByID(context.Background(), created.ID)
		require.NoError(t, getErr)
		require.Equal(t, domain.StatusInTransit, stored.Status)
	})

	t.Run("already delivered is a no-op", func(t *testing.T) {
		// Arrange
		svc, d := newService(t)
		created := createPending(t, svc, d)
		assignDriver(t, svc, d, created.ID)
		_, err := svc.ConfirmPickup(driverCtx("driver-1"), created.ID)
		require.NoError(t, err)
		_, err = svc.StartTransit(driverCtx("driver-1"), created.ID)
		require.NoError(t, err)
		_, err = svc.ConfirmDelivery(driverCtx("driver-1"), created.ID)
		require.NoError(t, err)

		// Act
		err = svc.CancelByOrder(context.Background(), "order-1")

		// Assert
		require.NoError(t, err)
		stored, getErr := d.repo.GetByID(context.Background(), created.ID)
		require.NoError(t, getErr)
		require.Equal(t, domain.StatusDelivered, stored.Status)
	})
}
