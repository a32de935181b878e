package scope

import (
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultOutBufferSize = 10

	serviceName       = "ppi.scope.Scope"
	getFramesMethod   = "GetFrames"
	getFramesFullName = "/" + serviceName + "/" + getFramesMethod
)

// scopeService is the server side of the scope service:
//
//	service Scope {
//	  rpc GetFrames(google.protobuf.Empty) returns (stream google.protobuf.Struct);
//	}
type scopeService interface {
	GetFrames(*emptypb.Empty, grpc.ServerStream) error
}

var scopeServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*scopeService)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    getFramesMethod,
			Handler:       getFramesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "scope.proto",
}

func getFramesHandler(srv any, stream grpc.ServerStream) error {
	request := new(emptypb.Empty)
	if err := stream.RecvMsg(request); err != nil {
		return err
	}
	return srv.(scopeService).GetFrames(request, stream)
}

type grpcServer struct {
	address  *net.TCPAddr
	listener net.Listener
	server   *grpc.Server

	outBufferSize int
	in            chan *structpb.Struct
	register      chan chan *structpb.Struct
	out           []chan *structpb.Struct
	shutdown      chan struct{}
	stopOnce      sync.Once
}

func newGRPCServer(address string, outBufferSize int) (*grpcServer, error) {
	result := &grpcServer{
		outBufferSize: outBufferSize,
		in:            make(chan *structpb.Struct),
		register:      make(chan chan *structpb.Struct),
		shutdown:      make(chan struct{}),
	}

	localAddress, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve address %s: %w", address, err)
	}
	result.address = localAddress

	return result, nil
}

func (s *grpcServer) run() {
	for {
		select {
		case <-s.shutdown:
			for _, out := range s.out {
				close(out)
			}
			s.out = nil
			return
		case out := <-s.register:
			s.out = append(s.out, out)
		case frame := <-s.in:
			s.sendFrameToStreams(frame)
		}
	}
}

// sendFrameToStreams closes every stream that cannot take the frame immediately.
func (s *grpcServer) sendFrameToStreams(frame *structpb.Struct) {
	responsive := s.out[:0]
	for _, out := range s.out {
		select {
		case out <- frame:
			responsive = append(responsive, out)
		default:
			close(out)
		}
	}
	clear(s.out[len(responsive):])
	s.out = responsive
}

func (s *grpcServer) getFrameStream() chan *structpb.Struct {
	result := make(chan *structpb.Struct, s.outBufferSize)
	select {
	case s.register <- result:
	case <-s.shutdown:
		close(result)
	}
	return result
}

// Listen opens the listening socket. It must be called before Serve.
func (s *grpcServer) Listen() error {
	if s.listener != nil {
		return fmt.Errorf("server already listening")
	}

	listener, err := net.Listen("tcp", s.address.String())
	if err != nil {
		return fmt.Errorf("cannot listen on address %s: %w", s.address, err)
	}
	s.listener = listener
	s.server = grpc.NewServer()
	s.server.RegisterService(&scopeServiceDesc, s)

	go s.run()

	return nil
}

// Serve handles incoming connections until Stop is called.
func (s *grpcServer) Serve() error {
	if s.listener == nil {
		return fmt.Errorf("server is not listening")
	}
	defer s.closeShutdown()
	return s.server.Serve(s.listener)
}

func (s *grpcServer) closeShutdown() {
	s.stopOnce.Do(func() {
		close(s.shutdown)
	})
}

func (s *grpcServer) Stop() {
	if s.server == nil {
		return
	}
	s.server.Stop()
	s.closeShutdown()
}

func (s *grpcServer) Addr() net.Addr {
	if s.listener == nil {
		return s.address
	}
	return s.listener.Addr()
}

func (s *grpcServer) GetFrames(_ *emptypb.Empty, stream grpc.ServerStream) error {
	frames := s.getFrameStream()
	for {
		select {
		case frame, open := <-frames:
			if !open {
				return nil
			}
			if err := stream.SendMsg(frame); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

// SendFrame hands the frame to all connected streams. It returns immediately after the server was stopped.
func (s *grpcServer) SendFrame(frame *structpb.Struct) {
	select {
	case s.in <- frame:
	case <-s.shutdown:
	}
}
