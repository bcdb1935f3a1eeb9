package computer

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/thushan/ferry/internal/core/domain"
)

type gatewayJob struct {
	id  uint64
	req domain.LambdaRequest
}

// Gateway executes lambdas on an external HTTP FaaS gateway. A bounded
// worker pool consumes the job queue, issues one POST per job and routes the
// response back through the completion callback. Load information is not
// defined in this mode.
type Gateway struct {
	url       string
	done      TaskDoneFunc
	logger    *slog.Logger
	http      *http.Client
	jobs      chan gatewayJob
	nextID    atomic.Uint64
	wg        sync.WaitGroup
	closing   chan struct{}
	closeOnce sync.Once
}

func NewGateway(url string, numClients int, timeout time.Duration, done TaskDoneFunc, logger *slog.Logger) (*Gateway, error) {
	if numClients == 0 {
		return nil, fmt.Errorf("invalid vanishing number of HTTP clients")
	}
	g := &Gateway{
		url:     url,
		done:    done,
		logger:  logger,
		http:    &http.Client{Timeout: timeout},
		jobs:    make(chan gatewayJob, numClients*16),
		closing: make(chan struct{}),
	}
	for i := 0; i < numClients; i++ {
		g.wg.Add(1)
		go g.worker()
	}
	logger.Info("started FaaS gateway backend", "url", url, "clients", numClients)
	return g, nil
}

func (g *Gateway) AddTask(req domain.LambdaRequest) (uint64, error) {
	id := g.nextID.Add(1)
	select {
	case g.jobs <- gatewayJob{id: id, req: req}:
		return id, nil
	case <-g.closing:
		return 0, domain.ErrTerminating
	}
}

// SimTask cannot estimate on behalf of an external gateway.
func (g *Gateway) SimTask(domain.LambdaRequest) (float64, [3]float64, error) {
	return 0, [3]float64{}, nil
}

func (g *Gateway) Close() error {
	g.closeOnce.Do(func() {
		close(g.closing)
	})
	g.wg.Wait()
	return nil
}

func (g *Gateway) worker() {
	defer g.wg.Done()
	for {
		select {
		case <-g.closing:
			return
		case job := <-g.jobs:
			rep := g.post(job.req)
			g.done(job.id, rep)
		}
	}
}

func (g *Gateway) post(req domain.LambdaRequest) *domain.LambdaResponse {
	body := req.DataIn
	if len(body) == 0 {
		body = []byte(req.Input)
	}

	httpReq, err := http.NewRequest(http.MethodPost, g.url+"/function/"+req.Name, bytes.NewReader(body))
	if err != nil {
		rep := domain.NewLambdaResponse(err.Error(), "")
		return &rep
	}
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	httpRep, err := g.http.Do(httpReq)
	if err != nil {
		rep := domain.NewLambdaResponse(err.Error(), "")
		return &rep
	}
	defer httpRep.Body.Close()

	payload, err := io.ReadAll(httpRep.Body)
	if err != nil {
		rep := domain.NewLambdaResponse(err.Error(), "")
		return &rep
	}
	if httpRep.StatusCode != http.StatusOK {
		rep := domain.NewLambdaResponse(fmt.Sprintf("gateway returned status %d", httpRep.StatusCode), "")
		return &rep
	}

	rep := domain.NewLambdaResponse(domain.RetCodeOK, string(payload))
	rep.DataOut = payload
	return &rep
}

var _ Backend = (*Gateway)(nil)
var _ Backend = (*Simulator)(nil)
