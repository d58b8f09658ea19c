package reservations_service_api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/service/booking"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "travelbooking.v1.Reservations"

// ReservationsServer is the server side of travelbooking.v1.Reservations.
// Requests and responses travel as google.protobuf.Struct.
type ReservationsServer interface {
	Reserve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Cancel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReservationsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Reserve", Handler: unaryHandler("Reserve", ReservationsServer.Reserve)},
		{MethodName: "Cancel", Handler: unaryHandler("Cancel", ReservationsServer.Cancel)},
		{MethodName: "GetBooking", Handler: unaryHandler("GetBooking", ReservationsServer.GetBooking)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "travelbooking/v1/reservations.proto",
}

func RegisterReservationsServer(s grpc.ServiceRegistrar, srv ReservationsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unaryHandler(method string, call func(ReservationsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReservationsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReservationsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Server adapts booking.BookingUseCase to the Reservations service.
type Server struct {
	bookings booking.BookingUseCase
}

func NewServer(bookings booking.BookingUseCase) *Server {
	return &Server{bookings: bookings}
}

// wholeNumber reads a JSON number field that must hold an integer. A missing field is 0.
func wholeNumber(fields map[string]*structpb.Value, name string) (int, error) {
	n := fields[name].GetNumberValue()
	if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a whole number", name)
	}
	return int(n), nil
}

func (s *Server) Reserve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	quantity, err := wholeNumber(fields, "quantity")
	if err != nil {
		return nil, err
	}
	input := booking.ReserveInput{
		UserID:          fields["user_id"].GetStringValue(),
		Type:            domain.ListingType(fields["type"].GetStringValue()),
		ReferenceID:     fields["reference_id"].GetStringValue(),
		Quantity:        quantity,
		SpecialRequests: fields["special_requests"].GetStringValue(),
	}

	start, err := dateField(fields, "start_date")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if start != nil {
		input.StartDate = *start
	}
	if input.EndDate, err = dateField(fields, "end_date"); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if details, ok := fields["traveler_details"]; ok {
		raw, err := details.MarshalJSON()
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "traveler_details: "+err.Error())
		}
		input.TravelerDetails = raw
	}

	created, err := s.bookings.Reserve(ctx, input)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(created)
}

func (s *Server) Cancel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["booking_id"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "booking_id is required")
	}
	cancelled, err := s.bookings.Cancel(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(cancelled)
}

func (s *Server) GetBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["booking_id"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "booking_id is required")
	}
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(b)
}

func dateField(fields map[string]*structpb.Value, name string) (*time.Time, error) {
	s := fields[name].GetStringValue()
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("%s: expected YYYY-MM-DD, got %q", name, s)
	}
	return &t, nil
}

func toStruct(b *domain.Booking) (*structpb.Struct, error) {
	m := map[string]any{
		"booking_id":        b.BookingID,
		"user_id":           b.UserID,
		"type":              string(b.Type),
		"reference_id":      b.ReferenceID,
		"provider_name":     b.ProviderName,
		"start_date":        b.StartDate.Format(time.DateOnly),
		"quantity":          b.Quantity,
		"unit_price_cents":  b.UnitPriceCents,
		"total_price_cents": b.TotalPriceCents,
		"status":            string(b.Status),
		"payment_status":    string(b.PaymentStatus),
		"created_at":        b.CreatedAt.Format(time.RFC3339),
		"updated_at":        b.UpdatedAt.Format(time.RFC3339),
	}
	if b.EndDate != nil {
		m["end_date"] = b.EndDate.Format(time.DateOnly)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidReference),
		errors.Is(err, domain.ErrInvalidDateRange):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrBookingNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrInsufficientCapacity),
		errors.Is(err, domain.ErrAlreadyCancelled),
		errors.Is(err, domain.ErrBookingNotCancellable):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrTransientStore):
		code = codes.Unavailable
	case errors.Is(err, domain.ErrCommitOutcomeUnknown):
		return status.Error(codes.Unknown, domain.ErrCommitOutcomeUnknown.Error())
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
