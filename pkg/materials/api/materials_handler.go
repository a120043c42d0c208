package api

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	"github.com/tendant/simple-portal/pkg/materials"
)

// FileResponse describes one material as the front end consumes it
type FileResponse struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	DownloadURL string    `json:"downloadUrl"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// MutationResponse is returned by upload and rename
type MutationResponse struct {
	Success bool          `json:"success"`
	File    *FileResponse `json:"file,omitempty"`
}

// RenameRequest is the body of a rename
type RenameRequest struct {
	NewName string `json:"newName"`
}

// CategoryResponse lists what a category accepts
type CategoryResponse struct {
	Name          string   `json:"name"`
	Label         string   `json:"label"`
	ContentTypes  []string `json:"contentTypes"`
	MaxUploadSize int64    `json:"maxUploadSize"`
}

func toFileResponse(item *materials.MaterialItem) *FileResponse {
	return &FileResponse{
		Name:        item.Name,
		URL:         item.ViewURL,
		DownloadURL: item.DownloadURL,
		Size:        item.Size,
		ContentType: item.ContentType,
		UpdatedAt:   item.UpdatedAt,
	}
}

// Upload streams the multipart "file" field into the category
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	category := pathParam(r, "category")
	if _, err := h.service.ValidateCategory(category); err != nil {
		h.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.service.MaxUploadSize()+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "expected a multipart/form-data body")
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeJSONError(w, r, http.StatusBadRequest, "no file sent")
			return
		}
		if err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				h.writeError(w, r, err)
				return
			}
			writeJSONError(w, r, http.StatusBadRequest, "malformed multipart body")
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		filename := rawFileName(part)
		contentType := part.Header.Get("Content-Type")
		if contentType == "" {
			contentType = materials.ContentTypeByName(filename)
		}
		item, err := h.service.ReceiveUpload(r.Context(), materials.UploadRequest{
			Category:    category,
			Filename:    filename,
			ContentType: contentType,
			Size:        -1,
			Body:        part,
		})
		part.Close()
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		render.JSON(w, r, MutationResponse{Success: true, File: toFileResponse(item)})
		return
	}
}

// rawFileName returns the filename parameter exactly as sent.
// Part.FileName strips directories, which would hide names that must be
// rejected.
func rawFileName(part *multipart.Part) string {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return ""
	}
	return params["filename"]
}

// List returns the items of a category
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListCategory(r.Context(), pathParam(r, "category"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := make([]*FileResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toFileResponse(item))
	}
	render.JSON(w, r, resp)
}

// Rename gives an item a new, unused name
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	item, err := h.service.RenameItem(r.Context(), pathParam(r, "category"), pathParam(r, "filename"), req.NewName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, MutationResponse{Success: true, File: toFileResponse(item)})
}

// Delete removes an item
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteItem(r.Context(), pathParam(r, "category"), pathParam(r, "filename")); err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, MutationResponse{Success: true})
}

// Download sends an item as an attachment, or redirects to the backend
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, materials.AttachmentDisposition)
}

// View sends an item for in-browser display
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, materials.InlineDisposition)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, disposition func(string) string) {
	d, err := h.service.ResolveDownload(r.Context(), pathParam(r, "category"), pathParam(r, "filename"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if d.RedirectURL != "" {
		http.Redirect(w, r, d.RedirectURL, http.StatusFound)
		return
	}
	defer d.Body.Close()

	contentType := d.ContentType
	if contentType == "" {
		contentType = materials.ContentTypeByName(d.Name)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", disposition(d.Name))
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if rs, ok := d.Body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, d.Name, d.ModTime, rs)
		return
	}
	if d.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(d.Size, 10))
	}
	if !d.ModTime.IsZero() {
		w.Header().Set("Last-Modified", d.ModTime.UTC().Format(http.TimeFormat))
	}
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, d.Body); err != nil {
		h.logger.Warn("download interrupted", "name", d.Name, "err", err)
	}
}

// Categories lists every category with the content types it accepts
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	resp := make([]CategoryResponse, 0, len(materials.Categories))
	for _, c := range materials.Categories {
		resp = append(resp, CategoryResponse{
			Name:          string(c),
			Label:         h.service.CategoryLabel(c),
			ContentTypes:  h.service.AcceptedContentTypes(c),
			MaxUploadSize: h.service.MaxUploadSize(),
		})
	}
	render.JSON(w, r, resp)
}
