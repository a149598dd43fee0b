package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingLifecycle(t *testing.T) {
	env := setup(t)
	owner, biz := testutil.SeedBusiness(t, env.db, "reef")
	off := seedOffering(t, env.db, biz.ID, "Snorkel", 4000)
	token := tokenFor(t, owner, biz, model.RoleOwner)

	rec := env.do(t, http.MethodPost, "/api/bookings", token, map[string]interface{}{
		"offering_id":    off.ID,
		"customer_name":  "Dee",
		"customer_email": "dee@example.com",
		"booking_date":   "2025-07-04",
		"party_size":     2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, model.BookingPending, created["status"])
	assert.Equal(t, model.PaymentUnpaid, created["payment_status"])
	assert.EqualValues(t, 8000, created["total_cents"])
	assert.NotEmpty(t, created["confirmation_code"])
	id := uint(created["id"].(float64))

	var notes []model.Notification
	require.NoError(t, env.db.Where("user_id = ?", owner.ID).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, "New booking", notes[0].Title)

	path := fmt.Sprintf("/api/bookings/%d/status", id)
	rec = env.do(t, http.MethodPatch, path, token, map[string]string{"status": model.BookingConfirmed})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.BookingConfirmed, decode(t, rec)["status"])

	rec = env.do(t, http.MethodPatch, path, token, map[string]string{"status": model.BookingPending})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPatch, path, token, map[string]string{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/bookings?status=confirmed", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["bookings"], 1)

	rec = env.do(t, http.MethodGet, "/api/bookings?from=2025-08-01", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["bookings"], 0)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/bookings/%d", id), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBookingValidation(t *testing.T) {
	env := setup(t)
	owner, biz := testutil.SeedBusiness(t, env.db, "reef")
	off := model.Offering{BusinessID: biz.ID, Name: "Boat", PriceCents: 100, Capacity: 2, Active: true}
	require.NoError(t, env.db.Create(&off).Error)
	token := tokenFor(t, owner, biz, model.RoleOwner)

	rec := env.do(t, http.MethodPost, "/api/bookings", token, map[string]interface{}{
		"offering_id": off.ID, "customer_name": "A", "customer_email": "a@example.com",
		"booking_date": "2025-07-04", "party_size": 3,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/bookings", token, map[string]interface{}{
		"offering_id": off.ID + 99, "customer_name": "A", "customer_email": "a@example.com",
		"booking_date": "2025-07-04",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/bookings", token, map[string]interface{}{
		"offering_id": off.ID, "customer_email": "a@example.com", "booking_date": "2025-07-04",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTenantIsolation(t *testing.T) {
	env := setup(t)
	ownerA, bizA := testutil.SeedBusiness(t, env.db, "alpha")
	ownerB, bizB := testutil.SeedBusiness(t, env.db, "beta")
	offA := seedOffering(t, env.db, bizA.ID, "Alpha tour", 1000)
	seedOffering(t, env.db, bizB.ID, "Beta tour", 1000)

	tokenA := tokenFor(t, ownerA, bizA, model.RoleOwner)
	tokenB := tokenFor(t, ownerB, bizB, model.RoleOwner)

	rec := env.do(t, http.MethodPost, "/api/bookings", tokenA, map[string]interface{}{
		"offering_id": offA.ID, "customer_name": "A", "customer_email": "a@example.com", "booking_date": "2025-07-04",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	bookingID := uint(decode(t, rec)["id"].(float64))

	// B cannot book A's offering, read A's booking or see it in a list
	rec = env.do(t, http.MethodPost, "/api/bookings", tokenB, map[string]interface{}{
		"offering_id": offA.ID, "customer_name": "B", "customer_email": "b@example.com", "booking_date": "2025-07-04",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/bookings/%d", bookingID), tokenB, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/api/bookings/%d/status", bookingID), tokenB, map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/bookings", tokenB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["bookings"], 0)

	rec = env.do(t, http.MethodGet, "/api/offerings", tokenB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	offerings := decode(t, rec)["offerings"].([]interface{})
	require.Len(t, offerings, 1)
	assert.Equal(t, "Beta tour", offerings[0].(map[string]interface{})["name"])

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/offerings/%d", offA.ID), tokenB, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoleChecks(t *testing.T) {
	env := setup(t)
	_, biz := testutil.SeedBusiness(t, env.db, "reef")
	viewer := seedMember(t, env.db, biz, "viewer@example.com", model.RoleViewer)
	staff := seedMember(t, env.db, biz, "staff@example.com", model.RoleStaff)
	viewerToken := tokenFor(t, viewer, biz, model.RoleViewer)
	staffToken := tokenFor(t, staff, biz, model.RoleStaff)

	rec := env.do(t, http.MethodGet, "/api/offerings", viewerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/offerings", viewerToken, map[string]interface{}{"name": "X"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/offerings", staffToken, map[string]interface{}{"name": "Sunset cruise", "price_cents": 5000, "active": false})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, false, decode(t, rec)["active"])

	rec = env.do(t, http.MethodPost, "/api/offerings", staffToken, map[string]interface{}{"name": "Bad", "price_cents": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/offerings?active=false", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["offerings"], 1)

	rec = env.do(t, http.MethodPatch, "/api/business", staffToken, map[string]interface{}{"name": "New"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
