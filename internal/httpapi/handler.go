package httpapi

import (
	"net/http"

	"github.com/aurabx/harmony/internal/pipeline"
)

// handler builds the chi handler for one (pipeline, endpoint) pair,
// mirroring router.rs's handle_request: ProtocolCtx -> envelope -> pipeline
// execute -> wire response, each stage's error mapped to an HTTP status via
// mapPipelineErrorToStatus.
func (a *Adapter) handler(endpointName string, resolved *pipeline.ResolvedPipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		epCfg, ok := a.Config.Endpoints[endpointName]
		if !ok {
			http.Error(w, "endpoint not configured", http.StatusInternalServerError)
			return
		}

		svc, err := a.Services.Resolve(epCfg.Service)
		if err != nil {
			http.Error(w, "failed to resolve endpoint service", http.StatusInternalServerError)
			return
		}

		ctx, err := requestToProtocolCtx(r, epCfg.Options)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		req, err := svc.BuildProtocolEnvelope(ctx, epCfg.Options)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		resp, err := a.Executor.Execute(r.Context(), resolved, ctx, req)
		if err != nil {
			status := mapPipelineErrorToStatus(err)
			if a.Logger != nil {
				a.Logger.Error("httpapi: pipeline execution failed", "endpoint", endpointName, "error", err.Error())
			}
			http.Error(w, http.StatusText(status), status)
			return
		}

		body, headers, err := svc.EndpointOutgoingResponse(resp, epCfg.Options)
		if err != nil {
			http.Error(w, "failed to build response", http.StatusInternalServerError)
			return
		}

		for k, v := range headers {
			w.Header().Set(k, v)
		}
		status := resp.ResponseDetails.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}
}
