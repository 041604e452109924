package pipeline

import (
	"github.com/Suhaibinator/SRest/pkg/common"
	"go.uber.org/zap"
)

// handlerContext binds a handler invocation to its position in the chain.
type handlerContext struct {
	p   *Pipeline
	pos int
}

var _ common.Context = (*handlerContext)(nil)

func (c *handlerContext) Next(req *common.Request) {
	c.p.next(c.pos, req)
}

func (c *handlerContext) Send(req *common.Request, resp *common.Response) {
	c.p.send(c.pos, req, resp)
}

func (c *handlerContext) Error(req *common.Request, cause error) {
	escalate(c.p, c.pos, req, cause)
}

func (c *handlerContext) Logger() *zap.Logger {
	return c.p.logger
}
