package queries

import (
	"errors"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/pkg/errs"
	"routeopt/internal/pkg/guard"
)

var (
	ErrGetOptimisationQueryIsNotConstructed = errors.New(
		"GetOptimisationQuery must be created via NewGetOptimisationQuery constructor",
	)
)

// GetOptimisationQuery retrieves one optimisation of a merchant with its
// routes and the rendered log.
//
// Example:
//
//	query, err := NewGetOptimisationQuery(merchantID, optimisationID)
//	if err != nil {
//	    return err
//	}
//	handler := NewGetOptimisationQueryHandler(db)
//
//	view, err := handler.Handle(ctx, query)
//	if err != nil {
//	    return fmt.Errorf("failed to load optimisation: %w", err)
//	}
//
//	for _, r := range view.Routes {
//	    fmt.Printf("%s drives %d jobs\n", r.DriverName, r.OrdersCount)
//	}
type GetOptimisationQuery struct {
	merchantID     kernel.UUID
	optimisationID kernel.UUID

	guard guard.ConstructorGuard
}

// NewGetOptimisationQuery scopes the lookup to the merchant so one tenant
// never sees another tenant's optimisation.
func NewGetOptimisationQuery(merchantID, optimisationID kernel.UUID) (GetOptimisationQuery, error) {
	if err := merchantID.Validate(); err != nil {
		return GetOptimisationQuery{}, errs.NewValueIsRequiredErrorWithCause("merchant", err)
	}
	if err := optimisationID.Validate(); err != nil {
		return GetOptimisationQuery{}, errs.NewValueIsRequiredErrorWithCause("optimisation", err)
	}
	return GetOptimisationQuery{
		merchantID:     merchantID,
		optimisationID: optimisationID,
		guard:          guard.NewConstructorGuard(),
	}, nil
}

// Validate ensures the query was created through the constructor.
// Returns ErrGetOptimisationQueryIsNotConstructed if validation fails.
func (q GetOptimisationQuery) Validate() error {
	return q.guard.Validate(ErrGetOptimisationQueryIsNotConstructed)
}

func (q GetOptimisationQuery) MerchantID() kernel.UUID {
	return q.merchantID
}

func (q GetOptimisationQuery) OptimisationID() kernel.UUID {
	return q.optimisationID
}

// GetOptimisationQueryResponse is the read model of an optimisation. Log
// holds messages rendered at read time.
type GetOptimisationQueryResponse struct {
	ID                kernel.UUID
	MerchantID        kernel.UUID
	Day               string
	Timezone          string
	Type              optimisation.Type
	State             optimisation.State
	Initiator         optimisation.Initiator
	Options           optimisation.Options
	CustomersNotified bool
	CreatedAt         time.Time
	Log               []string
	Routes            []RouteView
}

// RouteView is one driver route. OrdersCount counts delivered jobs, so a
// concatenated stop contributes all of its members.
type RouteView struct {
	ID              kernel.UUID
	DriverID        kernel.UUID
	DriverName      string
	State           string
	DrivingDistance float64
	DrivingTime     time.Duration
	StartTime       time.Time
	EndTime         time.Time
	OrdersCount     int
	Points          []PointView
}

// PointView is one stop of a route. ObjectID is empty for breaks and for
// the closing point of a route that ends at its last job.
type PointView struct {
	ID                       kernel.UUID
	Number                   int
	Kind                     string
	RefKind                  string
	ObjectID                 *kernel.UUID
	ObjectIDs                []kernel.UUID
	Title                    string
	Lat                      *float64
	Lng                      *float64
	ServiceTime              time.Duration
	StartTime                time.Time
	EndTime                  time.Time
	StartTimeKnownToCustomer *time.Time
	UtilizedCapacity         float64
}
