package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"files-board/internal/config"
	"files-board/internal/domain"
)

const maxJSONBody = 1 << 20

type Handler struct {
	uc            domain.FileAccess
	routes        config.RoutesConfig
	maxUploadSize int64
	messages      config.Messages
}

type errorBody struct {
	Detail string `json:"detail"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type listResponse struct {
	Files   []string          `json:"files"`
	Entries []domain.FileData `json:"entries"`
}

func NewHandler(
	uc domain.FileAccess,
	routes config.RoutesConfig,
	maxUploadSize int64,
	messages config.Messages,
) *Handler {
	return &Handler{
		uc:            uc,
		routes:        routes,
		maxUploadSize: maxUploadSize,
		messages:      messages,
	}
}

// Router регистрирует все маршруты, пути берутся из config.yaml.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc(h.routes.Login, h.Login).Methods(http.MethodPost)
	r.HandleFunc(h.routes.Upload, h.Upload).Methods(http.MethodPost)
	r.HandleFunc(h.routes.Folders, h.CreateFolder).Methods(http.MethodPost)
	r.HandleFunc(h.routes.Files, h.List).Methods(http.MethodGet)
	r.HandleFunc(h.routes.File, h.Delete).Methods(http.MethodDelete)
	r.HandleFunc(h.routes.Rename, h.Rename).Methods(http.MethodPut)
	r.HandleFunc(h.routes.ShareToken, h.IssueShareToken).Methods(http.MethodPost)
	r.HandleFunc(h.routes.Public, h.PublicFile).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(h.routes.Private, h.PrivateFile).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(h.routes.Preview, h.Preview).Methods(http.MethodGet)
	r.HandleFunc(h.routes.MakeShort, h.MakeShort).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc(h.routes.Short, h.Short).Methods(http.MethodGet)
	r.HandleFunc(h.routes.Notice, h.Notice).Methods(http.MethodGet)

	return withRequestID(withRequestLog(withRecover(r)))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		logrus.Warnf("Malformed login body: %v", err)
		h.writeError(w, http.StatusBadRequest, h.messages.BadRequest)
		return
	}

	token, err := h.uc.Login(req.Username, req.Password)
	if err != nil {
		h.handleError(w, err, h.messages.InternalError)
		return
	}

	logrus.WithFields(logrus.Fields{
		"operation": OperationLogin,
		"username":  req.Username,
	}).Info(LogUserLoggedIn)

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	// ContentLength может быть -1 при chunked-передаче, тогда лимит ловит MaxBytesReader.
	if r.ContentLength > h.maxUploadSize {
		h.writeError(w, http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge))
		return
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge))
			return
		}
		h.writeError(w, http.StatusBadRequest, h.messages.BadRequest)
		return
	}
	defer func() {
		if removeErr := r.MultipartForm.RemoveAll(); removeErr != nil {
			logrus.Warnf("Failed to remove multipart temp files: %v", removeErr)
		}
	}()

	file, header, err := r.FormFile(FormParamFile)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, h.messages.BadRequest)
		return
	}
	defer file.Close()

	folder := r.FormValue(QueryParamFolder)
	if uploadErr := h.uc.Upload(bearerToken(r), header.Filename, folder, file); uploadErr != nil {
		h.handleError(w, uploadErr, h.messages.InternalError)
		return
	}

	logrus.WithFields(logrus.Fields{
		"operation": OperationUpload,
		"folder":    folder,
		"filename":  header.Filename,
		"size":      header.Size,
	}).Info(LogFileUploaded)

	writeJSON(w, http.StatusOK, map[string]string{"filename": header.Filename})
}

func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue(FormParamName)
	folder := r.FormValue(QueryParamFolder)

	if err := h.uc.CreateFolder(bearerToken(r), name, folder); err != nil {
		h.handleError(w, err, h.messages.InternalError)
		return
	}

	logrus.WithFields(logrus.Fields{
		"operation": OperationCreateFolder,
		"folder":    folder,
		"name":      name,
	}).Info(LogFolderCreated)

	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Folder %s created successfully", name)})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.uc.List(bearerToken(r), r.URL.Query().Get(QueryParamFolder))
	if err != nil {
		h.handleError(w, err, h.messages.InternalError)
		return
	}

	resp := listResponse{Files: make([]string, 0, len(files)), Entries: files}
	for _, f := range files {
		resp.Files = append(resp.Files, f.Name)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)[PathVarFilename]
	folder := r.URL.Query().Get(QueryParamFolder)

	if err := h.uc.Delete(bearerToken(r), filename, folder); err != nil {
		h.handleError(w, err, h.messages.InternalError)
		return
	}

	logrus.WithFields(logrus.Fields{
		"operation": OperationDelete,
		"folder":    folder,
		"filename":  filename,
	}).Info(LogFileOrFolderDeleted)

	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("File %s deleted successfully", filename)})
}

func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	oldName := r.FormValue(FormParamOld)
	newName := r.FormValue(FormParamNew)
	folder := r.FormValue(QueryParamFolder)

	if err := h.uc.Rename(bearerToken(r), oldName, newName, folder); err != nil {
		h.handleError(w, err, h.messages.InternalError)
		return
	}

	logrus.WithFields(logrus.Fields{
		"operation": OperationRename,
		"folder":    folder,
		"old_name":  oldName,
		"new_name":  newName,
	}).Info(LogFileOrFolderRenamed)

	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("File %s renamed to %s", oldName, newName)})
}

func (h *Handler) IssueShareToken(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)[PathVarFilename]
	folder := r.URL.Query().Get(QueryParamFolder)

	capability, err := h.uc.IssueShareToken(bearerToken(r), filename, folder)
	if err != nil {
		h.handleError(w, err, h.messages.InternalError)
		return
	}

	logrus.WithFields(logrus.Fields{
		"operation": OperationShareToken,
		"folder":    folder,
		"filename":  filename,
	}).Info(LogShareTokenIssued)

	writeJSON(w, http.StatusOK, map[string]string{"temp_token": capability})
}

// PublicFile serves a shared file. Token, scope and path failures redirect to
// the notice page; only a missing file is a 404.
func (h *Handler) PublicFile(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)[PathVarFilename]
	query := r.URL.Query()

	content, err := h.uc.PublicFetch(query.Get(QueryParamToken), filename, query.Get(QueryParamFolder))
	if err != nil {
		switch h.getErrorType(err) {
		case errorTypeNotFound, errorTypeInternal:
			h.handleError(w, err, h.messages.InternalError)
		default:
			logrus.WithField("request_id", RequestIDFromContext(r.Context())).Warnf("Share link rejected: %v", err)
			http.Redirect(w, r, h.routes.Notice, http.StatusFound)
		}
		return
	}

	h.serveContent(w, r, content)
}

// PrivateFile accepts the session token from the "t" query parameter or an
// Authorization bearer header.
func (h *Handler) PrivateFile(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)[PathVarFilename]
	query := r.URL.Query()

	token := query.Get(QueryParamToken)
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		h.writeError(w, http.StatusBadRequest, h.messages.Unauthorized)
		return
	}

	content, err := h.uc.PrivateFetch(token, filename, query.Get(QueryParamFolder))
	if err != nil {
		if h.getErrorType(err) == errorTypeUnauthorized {
			logrus.Warnf("Private download rejected: %v", err)
			h.writeError(w, http.StatusForbidden, h.messages.Unauthorized)
			return
		}
		h.handleError(w, err, h.messages.InternalError)
		return
	}

	h.serveContent(w, r, content)
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)[PathVarFilename]

	lines, err := h.uc.Preview(bearerToken(r), filename, r.URL.Query().Get(QueryParamFolder))
	if err != nil {
		h.handleError(w, err, h.messages.InternalError)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"preview": lines})
}

func (h *Handler) MakeShort(w http.ResponseWriter, r *http.Request) {
	code, err := h.uc.CreateShortLink(bearerToken(r), r.FormValue(QueryParamURL))
	if err != nil {
		h.handleError(w, err, h.messages.InternalError)
		return
	}

	logrus.WithFields(logrus.Fields{
		"operation": OperationShortLink,
		"code":      code,
	}).Info(LogShortLinkCreated)

	writeJSON(w, http.StatusOK, map[string]string{
		"short_code": code,
		"short_url":  domain.ShortLinkPathPrefix + code,
	})
}

func (h *Handler) Short(w http.ResponseWriter, r *http.Request) {
	target, err := h.uc.ResolveShortLink(mux.Vars(r)[PathVarCode])
	if err != nil {
		h.handleError(w, err, h.messages.InternalError)
		return
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

func (h *Handler) Notice(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", ContentTypeText)
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, h.messages.ShareLinkNotice); err != nil {
		logrus.Warnf("Failed to write notice: %v", err)
	}
}

// serveContent отдаёт файл как вложение и закрывает его.
func (h *Handler) serveContent(w http.ResponseWriter, r *http.Request, content *domain.FileContent) {
	defer func() {
		if closeErr := content.Reader.Close(); closeErr != nil {
			logrus.Warnf("Failed to close file %s: %v", content.Name, closeErr)
		}
	}()

	mimeType := mime.TypeByExtension(filepath.Ext(content.Name))
	if mimeType == domain.PathEmpty {
		mimeType = domain.MIMEOctetStream
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": content.Name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, content.Name, content.ModTime, content.Reader)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get(HeaderAuthorization)
	if len(header) < len(BearerPrefix) || !strings.EqualFold(header[:len(BearerPrefix)], BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(BearerPrefix):])
}

type errorType int

const (
	errorTypeBadRequest errorType = iota
	errorTypeUnauthorized
	errorTypeForbidden
	errorTypeNotFound
	errorTypeInternal
)

// clientSafe lists the errors whose text may be shown to callers as is.
var clientSafe = []error{
	domain.ErrAlreadyExists,
	domain.ErrUnsupportedType,
	domain.ErrInvalidName,
	domain.ErrInvalidURL,
}

// getErrorType сопоставляет доменные ошибки с HTTP-кодами статуса.
// Traversal is checked first so it always reads as forbidden, never as not found.
func (h *Handler) getErrorType(err error) errorType {
	switch {
	case errors.Is(err, domain.ErrPathTraversal) || errors.Is(err, domain.ErrTokenMissing):
		return errorTypeForbidden
	case errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrTokenInvalid) ||
		errors.Is(err, domain.ErrTokenExpired) || errors.Is(err, domain.ErrTokenScope):
		return errorTypeUnauthorized
	case errors.Is(err, domain.ErrFileNotFound):
		return errorTypeNotFound
	case errors.Is(err, domain.ErrAlreadyExists) || errors.Is(err, domain.ErrUnsupportedType) ||
		errors.Is(err, domain.ErrInvalidName) || errors.Is(err, domain.ErrInvalidURL):
		return errorTypeBadRequest
	default:
		return errorTypeInternal
	}
}

func (h *Handler) handleError(w http.ResponseWriter, err error, message string) {
	var httpStatus int
	var clientMessage string

	switch h.getErrorType(err) {
	case errorTypeBadRequest:
		httpStatus = http.StatusBadRequest
		clientMessage = h.messages.BadRequest
		for _, safe := range clientSafe {
			if errors.Is(err, safe) {
				clientMessage = safe.Error()
				break
			}
		}
	case errorTypeUnauthorized:
		httpStatus = http.StatusUnauthorized
		clientMessage = h.messages.Unauthorized
		if errors.Is(err, domain.ErrInvalidCredentials) {
			clientMessage = h.messages.InvalidCredentials
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
	case errorTypeForbidden:
		httpStatus = http.StatusForbidden
		clientMessage = h.messages.Forbidden
	case errorTypeNotFound:
		httpStatus = http.StatusNotFound
		clientMessage = h.messages.NotFound
	case errorTypeInternal:
		httpStatus = http.StatusInternalServerError
		clientMessage = message
	}

	if httpStatus >= http.StatusInternalServerError {
		logrus.Errorf("HTTP %d Error: %s. Details: %+v", httpStatus, clientMessage, err)
	} else {
		logrus.Warnf("HTTP %d Error: %s. Details: %+v", httpStatus, clientMessage, err)
	}
	h.writeError(w, httpStatus, clientMessage)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Detail: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("Failed to encode response: %v", err)
	}
}
