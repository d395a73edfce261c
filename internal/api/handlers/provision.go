package handlers

import (
	"net/http"

	"github.com/go-chi/render"

	appprovision "github.com/homeport/provisioner/internal/app/provision"
	"github.com/homeport/provisioner/internal/domain/provision"
	"github.com/homeport/provisioner/internal/pkg/httputil"
)

// ProvisionHandler binds the RPC facade's five operations to a thin HTTP
// surface. The binary RPC transport itself is out of scope for this
// service, so this handler is intentionally minimal: JSON in, JSON out, one
// route per operation.
type ProvisionHandler struct {
	service *appprovision.Service
}

// NewProvisionHandler wraps an *appprovision.Service.
func NewProvisionHandler(service *appprovision.Service) *ProvisionHandler {
	return &ProvisionHandler{service: service}
}

// RegisterRoutes mounts the five operations under r.
func (h *ProvisionHandler) RegisterRoutes(r chiRouter) {
	r.Post("/databases", h.HandleProvisionDatabase)
	r.Delete("/databases", h.HandleDeleteDatabase)
	r.Post("/dynamodb", h.HandleProvisionDynamoDB)
	r.Delete("/dynamodb", h.HandleDeleteDynamoDB)
	r.Get("/healthz", h.HandleHealthCheck)
}

// chiRouter is the subset of chi.Router this handler needs, so callers can
// mount it under any sub-router without importing chi here directly.
type chiRouter interface {
	Post(pattern string, h http.HandlerFunc)
	Delete(pattern string, h http.HandlerFunc)
	Get(pattern string, h http.HandlerFunc)
}

// databaseRequestBody is the wire shape of a provision_database /
// delete_database request: db_type is a tagged union, modeled here as two
// optional nested objects of which exactly one must be set.
type databaseRequestBody struct {
	ProjectName string `json:"project_name"`
	DBType      struct {
		Shared *string `json:"shared,omitempty"`
		AwsRds *string `json:"aws_rds,omitempty"`
	} `json:"db_type"`
}

func (b databaseRequestBody) toDomain() provision.DatabaseRequest {
	req := provision.DatabaseRequest{ProjectName: b.ProjectName}
	switch {
	case b.DBType.Shared != nil:
		req.Class = provision.ResourceShared
		req.Engine = provision.Engine(*b.DBType.Shared)
	case b.DBType.AwsRds != nil:
		req.Class = provision.ResourceAwsRds
		req.Engine = provision.Engine(*b.DBType.AwsRds)
	}
	return req
}

type databaseInfoResponse struct {
	Engine        string `json:"engine"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	DatabaseName  string `json:"database_name"`
	Address       string `json:"address"`
	PublicAddress string `json:"public_address"`
	Port          int    `json:"port"`
}

func toDatabaseInfoResponse(info provision.DatabaseInfo) databaseInfoResponse {
	return databaseInfoResponse{
		Engine:        info.Engine,
		Username:      info.Username,
		Password:      info.Password,
		DatabaseName:  info.DatabaseName,
		Address:       info.Address,
		PublicAddress: info.PublicAddress,
		Port:          info.Port,
	}
}

// HandleProvisionDatabase handles POST /databases.
func (h *ProvisionHandler) HandleProvisionDatabase(w http.ResponseWriter, r *http.Request) {
	var body databaseRequestBody
	if !httputil.DecodeJSON(w, r, &body) {
		return
	}

	info, err := h.service.ProvisionDatabase(r.Context(), body.toDomain())
	if err != nil {
		writeProvisionError(w, r, err)
		return
	}
	render.JSON(w, r, toDatabaseInfoResponse(info))
}

// HandleDeleteDatabase handles DELETE /databases.
func (h *ProvisionHandler) HandleDeleteDatabase(w http.ResponseWriter, r *http.Request) {
	var body databaseRequestBody
	if !httputil.DecodeJSON(w, r, &body) {
		return
	}

	if err := h.service.DeleteDatabase(r.Context(), body.toDomain()); err != nil {
		writeProvisionError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"ok": true})
}

type dynamoRequestBody struct {
	ProjectName string `json:"project_name"`
}

type dynamoInfoResponse struct {
	Prefix          string `json:"prefix"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Region          string `json:"region"`
}

// HandleProvisionDynamoDB handles POST /dynamodb.
func (h *ProvisionHandler) HandleProvisionDynamoDB(w http.ResponseWriter, r *http.Request) {
	var body dynamoRequestBody
	if !httputil.DecodeJSON(w, r, &body) {
		return
	}

	info, err := h.service.ProvisionDynamoDB(r.Context(), provision.DynamoDBRequest{ProjectName: body.ProjectName})
	if err != nil {
		writeProvisionError(w, r, err)
		return
	}
	render.JSON(w, r, dynamoInfoResponse{
		Prefix:          info.Prefix,
		AccessKeyID:     info.AccessKeyID,
		SecretAccessKey: info.SecretAccessKey,
		Region:          info.Region,
	})
}

// HandleDeleteDynamoDB handles DELETE /dynamodb.
func (h *ProvisionHandler) HandleDeleteDynamoDB(w http.ResponseWriter, r *http.Request) {
	var body dynamoRequestBody
	if !httputil.DecodeJSON(w, r, &body) {
		return
	}

	if err := h.service.DeleteDynamoDB(r.Context(), provision.DynamoDBRequest{ProjectName: body.ProjectName}); err != nil {
		writeProvisionError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"ok": true})
}

// HandleHealthCheck handles GET /healthz. It requires no claim.
func (h *ProvisionHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	_ = h.service.HealthCheck(r.Context())
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// writeProvisionError maps the facade's two wire-visible error kinds to
// HTTP status codes. Every other failure is impossible to see here: the
// facade has already collapsed it to KindProvisionFailed.
func writeProvisionError(w http.ResponseWriter, r *http.Request, err error) {
	kind, _ := provision.KindOf(err)
	switch kind {
	case provision.KindPermissionDenied:
		httputil.Forbidden(w, r, "missing required scope")
	case provision.KindInternal:
		httputil.InternalError(w, r, err)
	default:
		httputil.InternalErrorWithMessage(w, r, "failed to provision a database", nil)
	}
}
