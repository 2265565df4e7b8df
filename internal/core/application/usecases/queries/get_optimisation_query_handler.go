package queries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetOptimisationQueryHandler reads an optimisation straight from the tables,
// bypassing the aggregates. Removed optimisations are reported as not found.
//
// Example:
//
//	handler := NewGetOptimisationQueryHandler(db)
//	view, err := handler.Handle(ctx, query)
//	if errors.Is(err, errs.ErrObjectNotFound) {
//	    return echo.NewHTTPError(http.StatusNotFound)
//	}
type GetOptimisationQueryHandler struct {
	db *gorm.DB
}

// NewGetOptimisationQueryHandler creates a handler for optimisation reads.
// Requires a GORM database connection for query execution.
func NewGetOptimisationQueryHandler(db *gorm.DB) GetOptimisationQueryHandler {
	return GetOptimisationQueryHandler{db: db}
}

// Handle loads the optimisation row, then its routes and all their points in
// two more queries. Routes are sorted by driver name, points by number.
func (h GetOptimisationQueryHandler) Handle(
	ctx context.Context,
	query GetOptimisationQuery,
) (*GetOptimisationQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	resp, err := h.optimisation(ctx, query)
	if err != nil {
		return nil, err
	}

	routes, err := h.routes(ctx, query.OptimisationID())
	if err != nil {
		return nil, err
	}
	resp.Routes = routes

	return resp, nil
}

func (h GetOptimisationQueryHandler) optimisation(
	ctx context.Context,
	query GetOptimisationQuery,
) (*GetOptimisationQueryResponse, error) {
	var (
		id, merchantID                uuid.UUID
		initiatorRaw, optionsRaw, log []byte
		resp                          GetOptimisationQueryResponse
	)

	err := h.db.WithContext(ctx).Raw(`
		SELECT
			id,
			merchant_id,
			day,
			timezone,
			type,
			state,
			initiator,
			options,
			customers_notified,
			log,
			created_at
		FROM route_optimisations
		WHERE id = ? AND merchant_id = ? AND state <> ?
	`, query.OptimisationID().Bytes(), query.MerchantID().Bytes(), string(optimisation.Removed)).Row().Scan(
		&id,
		&merchantID,
		&resp.Day,
		&resp.Timezone,
		&resp.Type,
		&resp.State,
		&initiatorRaw,
		&optionsRaw,
		&resp.CustomersNotified,
		&log,
		&resp.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NewObjectNotFoundError("optimisation", query.OptimisationID().String())
	}
	if err != nil {
		return nil, err
	}

	if resp.ID, err = kernel.UUIDFromBytes(id[:]); err != nil {
		return nil, err
	}
	if resp.MerchantID, err = kernel.UUIDFromBytes(merchantID[:]); err != nil {
		return nil, err
	}
	if err = unmarshalColumn("initiator", initiatorRaw, &resp.Initiator); err != nil {
		return nil, err
	}
	if err = unmarshalColumn("options", optionsRaw, &resp.Options); err != nil {
		return nil, err
	}
	var entries []optimisation.LogEntry
	if err = unmarshalColumn("log", log, &entries); err != nil {
		return nil, err
	}
	resp.Log = optimisation.RenderLog(entries)

	return &resp, nil
}

func (h GetOptimisationQueryHandler) routes(ctx context.Context, optimisationID kernel.UUID) ([]RouteView, error) {
	routes := make([]RouteView, 0)
	index := make(map[uuid.UUID]int)

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT
			id,
			driver_id,
			driver_name,
			state,
			driving_distance,
			driving_time_seconds,
			start_time,
			end_time
		FROM driver_routes
		WHERE optimisation_id = ?
		ORDER BY driver_name, id
	`, optimisationID.Bytes()).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r                RouteView
			id, driverID     uuid.UUID
			drivingTimeInSec int64
		)
		if err = rows.Scan(&id, &driverID, &r.DriverName, &r.State, &r.DrivingDistance,
			&drivingTimeInSec, &r.StartTime, &r.EndTime); err != nil {
			return nil, err
		}
		if r.ID, err = kernel.UUIDFromBytes(id[:]); err != nil {
			return nil, err
		}
		if r.DriverID, err = kernel.UUIDFromBytes(driverID[:]); err != nil {
			return nil, err
		}
		r.DrivingTime = time.Duration(drivingTimeInSec) * time.Second
		r.Points = make([]PointView, 0)
		index[id] = len(routes)
		routes = append(routes, r)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return routes, nil
	}

	if err = h.attachPoints(ctx, optimisationID, routes, index); err != nil {
		return nil, err
	}
	return routes, nil
}

func (h GetOptimisationQueryHandler) attachPoints(
	ctx context.Context,
	optimisationID kernel.UUID,
	routes []RouteView,
	index map[uuid.UUID]int,
) error {
	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT
			p.route_id,
			p.id,
			p.number,
			p.kind,
			p.ref_kind,
			p.object_id,
			p.member_ids,
			p.title,
			p.lat,
			p.lng,
			p.service_time_seconds,
			p.start_time,
			p.end_time,
			p.start_time_known_to_customer,
			p.utilized_capacity
		FROM route_points p
		JOIN driver_routes r ON r.id = p.route_id
		WHERE r.optimisation_id = ?
		ORDER BY p.route_id, p.number
	`, optimisationID.Bytes()).Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p                PointView
			routeID, id      uuid.UUID
			objectID         *uuid.UUID
			members          []byte
			serviceTimeInSec int64
		)
		if err = rows.Scan(&routeID, &id, &p.Number, &p.Kind, &p.RefKind, &objectID, &members, &p.Title,
			&p.Lat, &p.Lng, &serviceTimeInSec, &p.StartTime, &p.EndTime, &p.StartTimeKnownToCustomer,
			&p.UtilizedCapacity); err != nil {
			return err
		}
		if p.ID, err = kernel.UUIDFromBytes(id[:]); err != nil {
			return err
		}
		if objectID != nil {
			converted, convErr := kernel.UUIDFromBytes(objectID[:])
			if convErr != nil {
				return convErr
			}
			p.ObjectID = &converted
		}
		if err = unmarshalColumn("member_ids", members, &p.ObjectIDs); err != nil {
			return err
		}
		p.ServiceTime = time.Duration(serviceTimeInSec) * time.Second

		i, ok := index[routeID]
		if !ok {
			continue
		}
		r := &routes[i]
		r.Points = append(r.Points, p)
		if p.Kind == string(route.KindDelivery) {
			r.OrdersCount += deliveredJobs(p)
		}
	}

	return rows.Err()
}

func deliveredJobs(p PointView) int {
	if p.RefKind == string(route.RefConcatenated) {
		return len(p.ObjectIDs)
	}
	return 1
}

// unmarshalColumn decodes a JSON column. NULL leaves v untouched.
func unmarshalColumn(name string, raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
