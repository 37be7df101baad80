package shipping

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClock = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *memStore) {
	t.Helper()
	store := newMemStore()
	store.carriers["tc-7"] = &Carrier{
		ID: "tc-7", Name: "TransNorte", Phone: "555-0101",
		DriverName: "R. Gomez", LicensePlate: "ABC-123", Active: true,
	}
	eng := NewEngine(store,
		WithClock(func() time.Time { return testClock }),
		WithRand(rand.New(rand.NewSource(1))),
	)
	return eng, store
}

func createShipment(t *testing.T, eng *Engine) *Shipment {
	t.Helper()
	res, err := eng.CreateShipment(context.Background(), CreateShipmentInput{
		TransportCompanyID: "tc-7",
		UserID:             "user-1",
	})
	require.NoError(t, err)
	return res.Shipment
}

func TestCreateShipment(t *testing.T) {
	eng, _ := newTestEngine(t)

	res, err := eng.CreateShipment(context.Background(), CreateShipmentInput{
		TransportCompanyID: "tc-7",
		UserID:             "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Shipment.Status)
	assert.Equal(t, "tc-7", res.Shipment.TransportCompanyID)
	assert.Equal(t, "TransNorte", res.Carrier.Name)
	assert.Regexp(t, `^SH\d{18}$`, res.Shipment.ShipmentNumber)

	t.Run("unknown carrier", func(t *testing.T) {
		_, err := eng.CreateShipment(context.Background(), CreateShipmentInput{
			TransportCompanyID: "tc-missing",
			UserID:             "user-1",
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate shipment number", func(t *testing.T) {
		_, err := eng.CreateShipment(context.Background(), CreateShipmentInput{
			TransportCompanyID: "tc-7",
			ShipmentNumber:     res.Shipment.ShipmentNumber,
			UserID:             "user-2",
		})
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
	})
}

func TestStartShipment(t *testing.T) {
	eng, store := newTestEngine(t)
	sh := createShipment(t, eng)

	res, err := eng.StartShipment(context.Background(), sh.ShipmentNumber, "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, res.Shipment.Status)
	assert.Equal(t, "TransNorte", res.CarrierName)
	require.NotEmpty(t, res.ScanOperationID)

	ops := store.activeOps(sh.ID)
	require.Len(t, ops, 1)
	assert.Equal(t, "user-1", ops[0].UserID)

	t.Run("not pending anymore", func(t *testing.T) {
		_, err := eng.StartShipment(context.Background(), sh.ShipmentNumber, "user-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown number", func(t *testing.T) {
		_, err := eng.StartShipment(context.Background(), "SH000", "user-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestScanProduct_IncrementsOnBareBarcode(t *testing.T) {
	eng, store := newTestEngine(t)
	sh := createShipment(t, eng)

	first, err := eng.ScanProduct(context.Background(), ScanInput{
		ShipmentID: sh.ID, Barcode: "123", Quantity: 1, UserID: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionAdded, first.Action)
	assert.Equal(t, 1, first.TotalCount)

	second, err := eng.ScanProduct(context.Background(), ScanInput{
		ShipmentID: sh.ID, Barcode: "123", Quantity: 1, UserID: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionIncremented, second.Action)
	assert.Equal(t, 2, second.TotalCount)

	// one row with quantity 2, not two rows
	require.Len(t, store.products, 1)
	for _, p := range store.products {
		assert.Equal(t, 2, p.Quantity)
	}
}

func TestScanProduct_AutoPromotesPending(t *testing.T) {
	eng, store := newTestEngine(t)
	sh := createShipment(t, eng)

	_, err := eng.ScanProduct(context.Background(), ScanInput{
		ShipmentID: sh.ID, Barcode: "123", Quantity: 1, UserID: "user-1",
	})
	require.NoError(t, err)

	got := store.shipments[sh.ID]
	assert.Equal(t, StatusInProgress, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.Len(t, store.activeOps(sh.ID), 1)
}

func TestScanProduct_Defaults(t *testing.T) {
	eng, _ := newTestEngine(t)
	sh := createShipment(t, eng)

	res, err := eng.ScanProduct(context.Background(), ScanInput{
		ShipmentID: sh.ID, Barcode: "8801234567890", UserID: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Quantity)
	assert.Equal(t, 1, res.Product.Quantity)
	assert.Equal(t, "Product 8801234567890", res.Product.Name)
	assert.Equal(t, "8801234567890", res.Product.SKU)
	assert.Equal(t, "Electronics", res.Product.Category)
	assert.Equal(t, "Samsung", res.Product.Brand)
}

func TestScanProduct_RejectsTerminalShipment(t *testing.T) {
	eng, _ := newTestEngine(t)
	sh := createShipment(t, eng)
	_, err := eng.StartShipment(context.Background(), sh.ShipmentNumber, "user-1")
	require.NoError(t, err)
	_, err = eng.CompleteShipment(context.Background(), sh.ID, "user-1")
	require.NoError(t, err)

	_, err = eng.ScanProduct(context.Background(), ScanInput{
		ShipmentID: sh.ID, Barcode: "123", Quantity: 1, UserID: "user-1",
	})
	var state *InvalidStateError
	require.ErrorAs(t, err, &state)
	assert.Equal(t, StatusCompleted, state.Status)
}

func TestScanProduct_MissingShipment(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.ScanProduct(context.Background(), ScanInput{
		ShipmentID: "nope", Barcode: "123", Quantity: 1, UserID: "user-1",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

// Full workflow from the scanning floor: start, merge a bare barcode, add a
// serialized unit, reject the duplicate serial, complete.
func TestScanWorkflow(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	sh := createShipment(t, eng)

	started, err := eng.StartShipment(ctx, sh.ShipmentNumber, "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, started.Shipment.Status)
	require.Len(t, store.activeOps(sh.ID), 1)

	scan1, err := eng.ScanProduct(ctx, ScanInput{
		ShipmentID: sh.ID, Barcode: "123", Quantity: 2, UserID: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionAdded, scan1.Action)
	assert.Equal(t, 2, scan1.TotalCount)

	scan2, err := eng.ScanProduct(ctx, ScanInput{
		ShipmentID: sh.ID, Barcode: "123", Quantity: 1, SerialNumber: "SN1", UserID: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionAdded, scan2.Action, "distinct serial creates a second row")
	assert.Equal(t, 3, scan2.TotalCount)
	require.Len(t, store.products, 2)

	_, err = eng.ScanProduct(ctx, ScanInput{
		ShipmentID: sh.ID, Barcode: "123", Quantity: 1, SerialNumber: "SN1", UserID: "user-1",
	})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.NotNil(t, conflict.Existing)
	assert.Equal(t, "123", conflict.Existing.Barcode)

	total, err := store.ShipmentQuantityTotal(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, total, "conflict must not change totals")

	done, err := eng.CompleteShipment(ctx, sh.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Shipment.Status)
	require.NotNil(t, done.Shipment.ActualDeparture)
	assert.Equal(t, 3, done.TotalCount)
	assert.Equal(t, "ABC-123", done.Carrier.LicensePlate)

	assert.Empty(t, store.activeOps(sh.ID))
	for _, op := range store.ops {
		assert.Equal(t, ScanCompleted, op.Status)
		assert.Equal(t, 3, op.ProductCount)
		require.NotNil(t, op.EndTime)
	}
}

func TestScanProduct_SerialConflictOnFreshBarcode(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	sh := createShipment(t, eng)

	_, err := eng.ScanProduct(ctx, ScanInput{
		ShipmentID: sh.ID, Barcode: "123", Quantity: 1, SerialNumber: "SN9", UserID: "user-1",
	})
	require.NoError(t, err)

	// different barcode, same serial, same shipment
	_, err = eng.ScanProduct(ctx, ScanInput{
		ShipmentID: sh.ID, Barcode: "456", Quantity: 1, SerialNumber: "SN9", UserID: "user-1",
	})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestScanProduct_ReusesActiveOperation(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	sh := createShipment(t, eng)

	for i := 0; i < 3; i++ {
		_, err := eng.ScanProduct(ctx, ScanInput{
			ShipmentID: sh.ID, Barcode: "123", Quantity: 1, UserID: "user-1",
		})
		require.NoError(t, err)
	}
	ops := store.activeOps(sh.ID)
	require.Len(t, ops, 1, "repeat scans must reuse the active operation")
	assert.Equal(t, 3, ops[0].ProductCount)
}

func TestCompleteShipment_RequiresInProgress(t *testing.T) {
	eng, _ := newTestEngine(t)
	sh := createShipment(t, eng)

	_, err := eng.CompleteShipment(context.Background(), sh.ID, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelShipment(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	t.Run("pending", func(t *testing.T) {
		sh := createShipment(t, eng)
		res, err := eng.CancelShipment(ctx, sh.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, res.PreviousStatus)
		assert.Equal(t, StatusCancelled, res.Shipment.Status)
	})

	t.Run("in progress closes all active operations", func(t *testing.T) {
		sh := createShipment(t, eng)
		_, err := eng.ScanProduct(ctx, ScanInput{ShipmentID: sh.ID, Barcode: "1", Quantity: 1, UserID: "user-1"})
		require.NoError(t, err)
		_, err = eng.ScanProduct(ctx, ScanInput{ShipmentID: sh.ID, Barcode: "2", Quantity: 1, UserID: "user-2"})
		require.NoError(t, err)
		require.Len(t, store.activeOps(sh.ID), 2)

		_, err = eng.CancelShipment(ctx, sh.ID)
		require.NoError(t, err)
		assert.Empty(t, store.activeOps(sh.ID))
	})

	t.Run("completed shipment", func(t *testing.T) {
		sh := createShipment(t, eng)
		_, err := eng.StartShipment(ctx, sh.ShipmentNumber, "user-1")
		require.NoError(t, err)
		_, err = eng.CompleteShipment(ctx, sh.ID, "user-1")
		require.NoError(t, err)

		_, err = eng.CancelShipment(ctx, sh.ID)
		var state *InvalidStateError
		require.ErrorAs(t, err, &state)
		assert.Equal(t, StatusCompleted, store.shipments[sh.ID].Status, "failed cancel must not mutate")
	})
}

func TestChangeStatus(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	t.Run("creator may transition", func(t *testing.T) {
		sh := createShipment(t, eng)
		res, err := eng.ChangeStatus(ctx, sh.ID, StatusInProgress, "user-1", "User")
		require.NoError(t, err)
		assert.Equal(t, StatusPending, res.PreviousStatus)
		assert.Len(t, store.activeOps(sh.ID), 1)
	})

	t.Run("admin may transition someone else's shipment", func(t *testing.T) {
		sh := createShipment(t, eng)
		_, err := eng.ChangeStatus(ctx, sh.ID, StatusCancelled, "admin-9", "Admin")
		require.NoError(t, err)
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		sh := createShipment(t, eng)
		_, err := eng.ChangeStatus(ctx, sh.ID, StatusCancelled, "user-2", "User")
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, StatusPending, store.shipments[sh.ID].Status)
	})

	t.Run("invalid transition reports allowed set", func(t *testing.T) {
		sh := createShipment(t, eng)
		_, err := eng.ChangeStatus(ctx, sh.ID, StatusCompleted, "user-1", "User")
		var bad *InvalidTransitionError
		require.ErrorAs(t, err, &bad)
		assert.Equal(t, StatusPending, bad.From)
		assert.Equal(t, StatusCompleted, bad.To)
		assert.Equal(t, []Status{StatusInProgress, StatusCancelled}, bad.Allowed)
		assert.Equal(t, StatusPending, store.shipments[sh.ID].Status, "failed transition must not mutate")
	})

	t.Run("completed is terminal", func(t *testing.T) {
		sh := createShipment(t, eng)
		_, err := eng.ChangeStatus(ctx, sh.ID, StatusInProgress, "user-1", "User")
		require.NoError(t, err)
		_, err = eng.ChangeStatus(ctx, sh.ID, StatusCompleted, "user-1", "User")
		require.NoError(t, err)
		assert.NotNil(t, store.shipments[sh.ID].ActualDeparture)

		_, err = eng.ChangeStatus(ctx, sh.ID, StatusCancelled, "user-1", "User")
		var bad *InvalidTransitionError
		require.ErrorAs(t, err, &bad)
		assert.Empty(t, bad.Allowed)
	})

	t.Run("unknown target status", func(t *testing.T) {
		sh := createShipment(t, eng)
		_, err := eng.ChangeStatus(ctx, sh.ID, Status("Shipped"), "user-1", "User")
		var bad *InvalidTransitionError
		require.ErrorAs(t, err, &bad)
	})
}

func TestRemoveProduct(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	sh := createShipment(t, eng)

	res, err := eng.ScanProduct(ctx, ScanInput{ShipmentID: sh.ID, Barcode: "123", Quantity: 4, UserID: "user-1"})
	require.NoError(t, err)
	_, err = eng.ScanProduct(ctx, ScanInput{ShipmentID: sh.ID, Barcode: "456", Quantity: 1, UserID: "user-1"})
	require.NoError(t, err)

	removed, err := eng.RemoveProduct(ctx, res.Product.ID)
	require.NoError(t, err)
	assert.Equal(t, "123", removed.Barcode)

	ops := store.activeOps(sh.ID)
	require.Len(t, ops, 1)
	assert.Equal(t, 1, ops[0].ProductCount, "counts are recomputed after deletion")

	_, err = eng.RemoveProduct(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConflictRollsBackEverything(t *testing.T) {
	// A serial conflict on a Pending shipment must also roll back the
	// auto-promotion and the scan-operation writes that ran before it.
	eng, store := newTestEngine(t)
	ctx := context.Background()
	sh := createShipment(t, eng)

	_, err := eng.ScanProduct(ctx, ScanInput{ShipmentID: sh.ID, Barcode: "1", Quantity: 1, SerialNumber: "SN1", UserID: "user-1"})
	require.NoError(t, err)
	opsBefore := len(store.ops)

	_, err = eng.ScanProduct(ctx, ScanInput{ShipmentID: sh.ID, Barcode: "1", Quantity: 1, SerialNumber: "SN1", UserID: "user-2"})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	assert.Len(t, store.ops, opsBefore, "no scan operation may survive the rollback")
	require.Len(t, store.products, 1)
}

func TestEngineErrors(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.ScanProduct(context.Background(), ScanInput{ShipmentID: "x", UserID: "user-1"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
