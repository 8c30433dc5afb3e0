package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "agenda.v1.AgendaService"

// AgendaServiceServer is the server API of agenda.v1.AgendaService.
type AgendaServiceServer interface {
	ResolveDay(context.Context, *ResolveDayRequest) (*DayAvailability, error)
	ResolveWeek(context.Context, *ResolveWeekRequest) (*WeekAvailability, error)
	IsSlotAllowed(context.Context, *IsSlotAllowedRequest) (*IsSlotAllowedResponse, error)
	CreateBooking(context.Context, *CreateBookingRequest) (*CreateBookingResponse, error)
	CancelBooking(context.Context, *CancelBookingRequest) (*CancelBookingResponse, error)
	ListCoaches(context.Context, *ListCoachesRequest) (*ListCoachesResponse, error)
	ListServices(context.Context, *ListServicesRequest) (*ListServicesResponse, error)
	UpsertService(context.Context, *UpsertServiceRequest) (*UpsertServiceResponse, error)
	SetAvailabilityRules(context.Context, *SetAvailabilityRulesRequest) (*SetAvailabilityRulesResponse, error)
	AddAvailabilityException(context.Context, *AddAvailabilityExceptionRequest) (*AddAvailabilityExceptionResponse, error)
	ListCoachBookings(context.Context, *ListCoachBookingsRequest) (*ListBookingsResponse, error)
	ListMyBookings(context.Context, *ListMyBookingsRequest) (*ListBookingsResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

var AgendaServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AgendaServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ResolveDay", AgendaServiceServer.ResolveDay),
		unary("ResolveWeek", AgendaServiceServer.ResolveWeek),
		unary("IsSlotAllowed", AgendaServiceServer.IsSlotAllowed),
		unary("CreateBooking", AgendaServiceServer.CreateBooking),
		unary("CancelBooking", AgendaServiceServer.CancelBooking),
		unary("ListCoaches", AgendaServiceServer.ListCoaches),
		unary("ListServices", AgendaServiceServer.ListServices),
		unary("UpsertService", AgendaServiceServer.UpsertService),
		unary("SetAvailabilityRules", AgendaServiceServer.SetAvailabilityRules),
		unary("AddAvailabilityException", AgendaServiceServer.AddAvailabilityException),
		unary("ListCoachBookings", AgendaServiceServer.ListCoachBookings),
		unary("ListMyBookings", AgendaServiceServer.ListMyBookings),
		unary("Ping", AgendaServiceServer.Ping),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agenda/v1/agenda.proto",
}

func RegisterAgendaServiceServer(s grpc.ServiceRegistrar, srv AgendaServiceServer) {
	s.RegisterService(&AgendaServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(AgendaServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AgendaServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AgendaServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Client calls agenda.v1.AgendaService with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ResolveDay(ctx context.Context, in *ResolveDayRequest, opts ...grpc.CallOption) (*DayAvailability, error) {
	return invoke[DayAvailability](ctx, c.cc, "ResolveDay", in, opts)
}

func (c *Client) ResolveWeek(ctx context.Context, in *ResolveWeekRequest, opts ...grpc.CallOption) (*WeekAvailability, error) {
	return invoke[WeekAvailability](ctx, c.cc, "ResolveWeek", in, opts)
}

func (c *Client) IsSlotAllowed(ctx context.Context, in *IsSlotAllowedRequest, opts ...grpc.CallOption) (*IsSlotAllowedResponse, error) {
	return invoke[IsSlotAllowedResponse](ctx, c.cc, "IsSlotAllowed", in, opts)
}

func (c *Client) CreateBooking(ctx context.Context, in *CreateBookingRequest, opts ...grpc.CallOption) (*CreateBookingResponse, error) {
	return invoke[CreateBookingResponse](ctx, c.cc, "CreateBooking", in, opts)
}

func (c *Client) CancelBooking(ctx context.Context, in *CancelBookingRequest, opts ...grpc.CallOption) (*CancelBookingResponse, error) {
	return invoke[CancelBookingResponse](ctx, c.cc, "CancelBooking", in, opts)
}

func (c *Client) ListCoaches(ctx context.Context, in *ListCoachesRequest, opts ...grpc.CallOption) (*ListCoachesResponse, error) {
	return invoke[ListCoachesResponse](ctx, c.cc, "ListCoaches", in, opts)
}

func (c *Client) ListServices(ctx context.Context, in *ListServicesRequest, opts ...grpc.CallOption) (*ListServicesResponse, error) {
	return invoke[ListServicesResponse](ctx, c.cc, "ListServices", in, opts)
}

func (c *Client) UpsertService(ctx context.Context, in *UpsertServiceRequest, opts ...grpc.CallOption) (*UpsertServiceResponse, error) {
	return invoke[UpsertServiceResponse](ctx, c.cc, "UpsertService", in, opts)
}

func (c *Client) SetAvailabilityRules(ctx context.Context, in *SetAvailabilityRulesRequest, opts ...grpc.CallOption) (*SetAvailabilityRulesResponse, error) {
	return invoke[SetAvailabilityRulesResponse](ctx, c.cc, "SetAvailabilityRules", in, opts)
}

func (c *Client) AddAvailabilityException(ctx context.Context, in *AddAvailabilityExceptionRequest, opts ...grpc.CallOption) (*AddAvailabilityExceptionResponse, error) {
	return invoke[AddAvailabilityExceptionResponse](ctx, c.cc, "AddAvailabilityException", in, opts)
}

func (c *Client) ListCoachBookings(ctx context.Context, in *ListCoachBookingsRequest, opts ...grpc.CallOption) (*ListBookingsResponse, error) {
	return invoke[ListBookingsResponse](ctx, c.cc, "ListCoachBookings", in, opts)
}

func (c *Client) ListMyBookings(ctx context.Context, in *ListMyBookingsRequest, opts ...grpc.CallOption) (*ListBookingsResponse, error) {
	return invoke[ListBookingsResponse](ctx, c.cc, "ListMyBookings", in, opts)
}

func (c *Client) Ping(ctx context.Context, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, "Ping", &PingRequest{}, opts)
}
