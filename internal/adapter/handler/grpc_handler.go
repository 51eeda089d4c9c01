package handler

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/factory-orders/internal/core/domain"
	"github.com/rl1809/factory-orders/internal/core/service"
)

const (
	orderServiceName = "manufacturing.v1.OrderService"

	CreateOrderMethod       = "/" + orderServiceName + "/CreateOrder"
	GetOrderMethod          = "/" + orderServiceName + "/GetOrder"
	UpdateOrderStatusMethod = "/" + orderServiceName + "/UpdateOrderStatus"
)

// methodOperations drives the auth interceptor. Methods missing here are
// rejected.
var methodOperations = map[string]service.Operation{
	CreateOrderMethod:       service.OpCreateOrder,
	GetOrderMethod:          service.OpViewOrder,
	UpdateOrderStatusMethod: service.OpUpdateOrderStatus,
}

type CreateOrderRequest struct {
	service.CreateOrderInput
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type GetOrderRequest struct {
	OrderID int64 `json:"order_id"`
}

type UpdateOrderStatusRequest struct {
	OrderID int64              `json:"order_id"`
	Status  domain.OrderStatus `json:"status"`
}

// OrderServer is the gRPC surface of the order engine.
type OrderServer interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error)
	GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error)
	UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*OrderResponse, error)
}

type GRPCHandler struct {
	orders OrderService
	logger *slog.Logger
}

func NewGRPCHandler(orders OrderService, logger *slog.Logger) *GRPCHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCHandler{orders: orders, logger: logger}
}

func (h *GRPCHandler) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	actor, _ := IdentityFrom(ctx)

	key := req.IdempotencyKey
	if key == "" {
		key = firstMetadata(ctx, "idempotency-key")
	}

	order, err := h.orders.CreateOrder(ctx, actor, req.CreateOrderInput, key)
	if err != nil {
		return nil, h.statusError(err, CreateOrderMethod)
	}
	return newOrderResponse(order), nil
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error) {
	order, err := h.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, h.statusError(err, GetOrderMethod)
	}
	return newOrderResponse(order), nil
}

func (h *GRPCHandler) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*OrderResponse, error) {
	actor, _ := IdentityFrom(ctx)

	order, err := h.orders.UpdateOrderStatus(ctx, actor, req.OrderID, service.UpdateOrderStatusInput{Status: req.Status})
	if err != nil {
		return nil, h.statusError(err, UpdateOrderStatusMethod)
	}
	return newOrderResponse(order), nil
}

func (h *GRPCHandler) statusError(err error, method string) error {
	f := classify(err)
	if f.code == codes.Internal {
		h.logger.Error("grpc call failed", "method", method, "error", err)
	}
	return status.Error(f.code, f.message)
}

// AuthInterceptor authenticates the "authorization" metadata and applies the
// operation policy of the called method.
func AuthInterceptor(auth Authenticator, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		op, ok := methodOperations[info.FullMethod]
		if !ok {
			return nil, status.Errorf(codes.Unimplemented, "method %s not supported", info.FullMethod)
		}

		identity, err := auth.Authenticate(ctx, bearerToken(firstMetadata(ctx, "authorization")))
		if err != nil {
			f := classify(err)
			if f.code == codes.Internal {
				logger.Error("grpc authentication failed", "method", info.FullMethod, "error", err)
			}
			return nil, status.Error(f.code, f.message)
		}
		if err := service.Authorize(identity.Role, op); err != nil {
			logger.Warn("operation denied", "user_id", identity.ID, "role", identity.Role, "operation", op)
			return nil, status.Error(classify(err).code, err.Error())
		}

		return handler(WithIdentity(ctx, *identity), req)
	}
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

func RegisterOrderServer(s grpc.ServiceRegistrar, srv OrderServer) {
	s.RegisterService(&orderServiceDesc, srv)
}

var orderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateOrder", Handler: createOrderHandler},
		{MethodName: "GetOrder", Handler: getOrderHandler},
		{MethodName: "UpdateOrderStatus", Handler: updateOrderStatusHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func createOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServer).CreateOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CreateOrderMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServer).CreateOrder(ctx, req.(*CreateOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServer).GetOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetOrderMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServer).GetOrder(ctx, req.(*GetOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func updateOrderStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UpdateOrderStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServer).UpdateOrderStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: UpdateOrderStatusMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServer).UpdateOrderStatus(ctx, req.(*UpdateOrderStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// OrderClient calls OrderServer over the JSON codec.
type OrderClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderClient(cc grpc.ClientConnInterface) *OrderClient {
	return &OrderClient{cc: cc}
}

func (c *OrderClient) CreateOrder(ctx context.Context, in *CreateOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	if err := c.cc.Invoke(ctx, CreateOrderMethod, in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	if err := c.cc.Invoke(ctx, GetOrderMethod, in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderClient) UpdateOrderStatus(ctx context.Context, in *UpdateOrderStatusRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	if err := c.cc.Invoke(ctx, UpdateOrderStatusMethod, in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderClient) callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
}
