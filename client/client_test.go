package client_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"linkrpc/client"
	"linkrpc/codec"
	"linkrpc/loadbalance"
	"linkrpc/message"
	"linkrpc/registry"
	"linkrpc/server"
)

type Args struct {
	A, B int
}

type Reply struct {
	Result int
}

type Arith struct{}

func (a *Arith) Add(args *Args, reply *Reply) error {
	reply.Result = args.A + args.B
	return nil
}

func (a *Arith) Fail(args *Args, reply *Reply) error {
	return errors.New("always fails")
}

type SleepArgs struct {
	Millis int
}

type SleepReply struct{}

type Sleeper struct{}

func (s *Sleeper) Sleep(args *SleepArgs, reply *SleepReply) error {
	time.Sleep(time.Duration(args.Millis) * time.Millisecond)
	return nil
}

func startArith(t *testing.T, addr string) *registry.StaticRegistry {
	t.Helper()
	svr := server.NewServer()
	require.NoError(t, svr.Register(&Arith{}))
	require.NoError(t, svr.Register(&Sleeper{}))
	go svr.Serve("tcp", addr)
	t.Cleanup(func() { svr.Shutdown() })
	time.Sleep(100 * time.Millisecond)

	reg := registry.NewStaticRegistry()
	require.NoError(t, reg.Register("Arith", registry.ServiceInstance{Addr: addr}, 0))
	require.NoError(t, reg.Register("Sleeper", registry.ServiceInstance{Addr: addr}, 0))
	return reg
}

func TestClientCall(t *testing.T) {
	reg := startArith(t, "127.0.0.1:9301")
	cli := client.NewClient(reg, &loadbalance.RoundRobin{})
	t.Cleanup(func() { cli.Close() })

	reply := &Reply{}
	require.NoError(t, cli.Call(context.Background(), "Arith.Add", &Args{A: 1, B: 2}, reply))
	require.Equal(t, 3, reply.Result)

	reply2 := &Reply{}
	require.NoError(t, cli.Call(context.Background(), "Arith.Add", &Args{A: 10, B: 20}, reply2))
	require.Equal(t, 30, reply2.Result)
}

func TestClientCallBinaryCodec(t *testing.T) {
	reg := startArith(t, "127.0.0.1:9302")
	cli := client.NewClient(reg, &loadbalance.RoundRobin{}, client.WithCodec(codec.CodecTypeBinary))
	t.Cleanup(func() { cli.Close() })

	reply := &Reply{}
	require.NoError(t, cli.Call(context.Background(), "Arith.Add", &Args{A: 5, B: 7}, reply))
	require.Equal(t, 12, reply.Result)
}

func TestClientCallJSONLines(t *testing.T) {
	reg := startArith(t, "127.0.0.1:9303")
	cli := client.NewClient(reg, &loadbalance.RoundRobin{}, client.WithJSONLines())
	t.Cleanup(func() { cli.Close() })

	reply := &Reply{}
	require.NoError(t, cli.Call(context.Background(), "Arith.Add", &Args{A: 20, B: 22}, reply))
	require.Equal(t, 42, reply.Result)
}

func TestClientTypedErrors(t *testing.T) {
	reg := startArith(t, "127.0.0.1:9304")
	cli := client.NewClient(reg, &loadbalance.RoundRobin{})
	t.Cleanup(func() { cli.Close() })

	var status *message.Status

	err := cli.Call(context.Background(), "Arith.Missing", &Args{}, &Reply{})
	require.ErrorAs(t, err, &status)
	require.Equal(t, message.CodeUnknownMethod, status.Code)

	err = cli.Call(context.Background(), "Arith.Fail", &Args{}, &Reply{})
	require.ErrorAs(t, err, &status)
	require.Equal(t, message.CodeHandler, status.Code)
	require.Contains(t, status.Message, "always fails")

	// The client and connection stay usable after typed errors.
	reply := &Reply{}
	require.NoError(t, cli.Call(context.Background(), "Arith.Add", &Args{A: 1, B: 1}, reply))
	require.Equal(t, 2, reply.Result)
}

func TestClientContextDeadline(t *testing.T) {
	reg := startArith(t, "127.0.0.1:9305")
	cli := client.NewClient(reg, &loadbalance.RoundRobin{})
	t.Cleanup(func() { cli.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := cli.Call(ctx, "Sleeper.Sleep", &SleepArgs{Millis: 2000}, &SleepReply{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientConcurrentCalls(t *testing.T) {
	reg := startArith(t, "127.0.0.1:9306")
	cli := client.NewClient(reg, &loadbalance.RoundRobin{}, client.WithPoolSize(2))
	t.Cleanup(func() { cli.Close() })

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			reply := &Reply{}
			if err := cli.Call(context.Background(), "Arith.Add", &Args{A: n, B: 1}, reply); err != nil {
				t.Errorf("call %d failed: %v", n, err)
				return
			}
			if reply.Result != n+1 {
				t.Errorf("call %d: expect %d, got %d", n, n+1, reply.Result)
			}
		}(i)
	}
	wg.Wait()
}

func TestClientNoInstances(t *testing.T) {
	cli := client.NewClient(registry.NewStaticRegistry(), &loadbalance.RoundRobin{})
	t.Cleanup(func() { cli.Close() })

	err := cli.Call(context.Background(), "Ghost.Method", &Args{}, &Reply{})
	require.ErrorIs(t, err, loadbalance.ErrNoInstances)
}
