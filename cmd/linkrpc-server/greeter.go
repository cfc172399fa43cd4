package main

import (
	"errors"
	"fmt"
)

// The example services this server exposes.

type HelloArgs struct {
	Name string
}

type HelloReply struct {
	Greeting string
}

type Greeter struct{}

func (g *Greeter) Hello(args *HelloArgs, reply *HelloReply) error {
	reply.Greeting = fmt.Sprintf("Hello, %s!", args.Name)
	return nil
}

type AddArgs struct {
	A, B int
}

type AddReply struct {
	Sum int
}

type DivArgs struct {
	A, B int
}

type DivReply struct {
	Quotient int
}

type Arith struct{}

func (a *Arith) Add(args *AddArgs, reply *AddReply) error {
	reply.Sum = args.A + args.B
	return nil
}

func (a *Arith) Div(args *DivArgs, reply *DivReply) error {
	if args.B == 0 {
		return errors.New("division by zero")
	}
	reply.Quotient = args.A / args.B
	return nil
}
