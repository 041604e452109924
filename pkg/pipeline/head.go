package pipeline

import (
	"fmt"

	"github.com/Suhaibinator/SRest/pkg/common"
	"go.uber.org/zap"
)

// wireWriter is the head's handler: it hands the response to the flow's sink.
type wireWriter struct {
	logger *zap.Logger
}

func (w *wireWriter) Name() string { return "head" }

func (w *wireWriter) HandleResponse(_ common.Context, req *common.Request, resp *common.Response) {
	if body := resp.Body; body != nil {
		if _, ok := body.([]byte); !ok {
			w.logger.Error("Unknown response body",
				zap.String("type", fmt.Sprintf("%T", body)),
				zap.String("method", req.Method),
				zap.String("path", req.Path),
			)
			resp.Body = nil
		}
	}

	sink := req.Sink()
	if sink == nil {
		w.logger.Error("No response sink for request",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("status", resp.StatusCode),
		)
		return
	}
	if err := sink.Write(resp); err != nil {
		w.logger.Warn("Failed to write response",
			zap.Error(err),
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("status", resp.StatusCode),
		)
	}
}
