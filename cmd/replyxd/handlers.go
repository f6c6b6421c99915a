package main

import (
	"github.com/fluttercandies/replyx"
	"github.com/fluttercandies/replyx/contrib/methodchanx"
)

const (
	CodeFailed      = "failed"
	CodeInvalidArgs = "invalid_args"
)

type failArgs struct {
	Message string `json:"message"`
	Details any    `json:"details"`
}

func builtinHandlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"ping": handlePing,
		"echo": handleEcho,
		"fail": handleFail,
	}
}

func handlePing(req *methodchanx.Request, r *replyx.Replier) {
	r.Reply("pong")
}

func handleEcho(req *methodchanx.Request, r *replyx.Replier) {
	if len(req.Args) == 0 {
		r.Reply(nil)
		return
	}
	r.Reply(req.Args)
}

func handleFail(req *methodchanx.Request, r *replyx.Replier) {
	args, err := methodchanx.DecodeArgs[failArgs](req)
	if err != nil {
		msg := err.Error()
		r.ReplyError(CodeInvalidArgs, &msg, nil)
		return
	}

	var msg *string
	if args.Message != "" {
		msg = &args.Message
	}
	r.ReplyError(CodeFailed, msg, args.Details)
}
