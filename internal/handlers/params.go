package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "github.com/fossbin/propease/internal/errors"
	"github.com/fossbin/propease/internal/middleware"
	"github.com/fossbin/propease/internal/models"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// pathID parses the named path parameter as a UUID, responding 400 on failure.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		apierrors.BadRequest(c, "Invalid "+name, map[string]interface{}{name: c.Param(name)})
		return uuid.Nil, false
	}
	return id, true
}

// actor returns the caller identity. Anonymous reads get a zero Actor.
func actor(c *gin.Context) models.Actor {
	a, _ := middleware.GetActor(c)
	return a
}

// parseAsOf reads an as_of query value. A bare date means the end of that
// day in UTC; RFC3339 timestamps are used as given. Empty means now.
func parseAsOf(c *gin.Context, now func() time.Time) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query("as_of"))
	if raw == "" {
		return now().UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		apierrors.BadRequest(c, "Invalid as_of", map[string]interface{}{"as_of": raw})
		return time.Time{}, false
	}
	return d.AddDate(0, 0, 1).Add(-time.Nanosecond), true
}

// parseDate parses an optional calendar date.
func parseDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, *raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", *raw)
	}
	return &d, nil
}

// parseNear parses "lat,lng".
func parseNear(raw string) (models.Point, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return models.Point{}, fmt.Errorf("near must be lat,lng")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.Point{}, fmt.Errorf("invalid latitude %q", parts[0])
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.Point{}, fmt.Errorf("invalid longitude %q", parts[1])
	}
	return models.NewPoint(lat, lng), nil
}
