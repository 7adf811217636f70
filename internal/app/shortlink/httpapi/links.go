package httpapi

import (
	"net/http"
	"strings"
	"time"

	"shortlink.local/gee"
	"shortlink.local/internal/app/shortlink"
	"shortlink.local/internal/platform/auth"
)

type ShortenRequest struct {
	URL       string     `json:"url"`
	Alias     string     `json:"alias,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type UpdateRequest struct {
	OriginalURL *string    `json:"original_url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// LinkResponse 是对外的链接表示：ID 是 sqids 编码后的不透明字符串。
type LinkResponse struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	CustomAlias bool       `json:"custom_alias"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type StatsResponse struct {
	Code        string     `json:"code"`
	OriginalURL string     `json:"original_url"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	VisitCount  int64      `json:"visit_count"`
	LastVisited *time.Time `json:"last_visited,omitempty"`
}

type linkHandlers struct {
	svc     *shortlink.Service
	baseURL string
}

func (h *linkHandlers) toResponse(l shortlink.Link) (LinkResponse, error) {
	id, err := shortlink.EncodeID(l.ID)
	if err != nil {
		return LinkResponse{}, err
	}
	return LinkResponse{
		ID:          id,
		Code:        l.Code,
		ShortURL:    h.baseURL + "/" + l.Code,
		OriginalURL: l.OriginalURL,
		CustomAlias: l.CustomAlias,
		CreatedAt:   l.CreatedAt,
		ExpiresAt:   l.ExpiresAt,
	}, nil
}

func (h *linkHandlers) writeLinks(ctx *gee.Context, links []shortlink.Link) {
	out := make([]LinkResponse, 0, len(links))
	for _, l := range links {
		resp, err := h.toResponse(l)
		if err != nil {
			writeError(ctx, err)
			return
		}
		out = append(out, resp)
	}
	ctx.JSON(http.StatusOK, out)
}

func (h *linkHandlers) shorten(ctx *gee.Context) {
	var req ShortenRequest
	if err := ctx.BindJSON(&req); err != nil {
		return
	}
	link, err := h.svc.Shorten(ctx.Req.Context(), shortlink.ShortenInput{
		URL:       strings.TrimSpace(req.URL),
		Alias:     strings.TrimSpace(req.Alias),
		ExpiresAt: req.ExpiresAt,
		OwnerID:   auth.OwnerID(ctx.Req.Context()),
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp, err := h.toResponse(link)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// redirect 是热点路径：解析成功 302，过期 410，不存在 404。
func (h *linkHandlers) redirect(ctx *gee.Context) {
	url, err := h.svc.Resolve(ctx.Req.Context(), ctx.Param("code"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.Redirect(http.StatusFound, url)
}

func (h *linkHandlers) stats(ctx *gee.Context) {
	st, err := h.svc.GetStats(ctx.Req.Context(), ctx.Param("code"), auth.OwnerID(ctx.Req.Context()))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, StatsResponse{
		Code:        st.Code,
		OriginalURL: st.OriginalURL,
		CreatedAt:   st.CreatedAt,
		ExpiresAt:   st.ExpiresAt,
		VisitCount:  st.VisitCount,
		LastVisited: st.LastVisited,
	})
}

func (h *linkHandlers) update(ctx *gee.Context) {
	var req UpdateRequest
	if err := ctx.BindJSON(&req); err != nil {
		return
	}
	u := shortlink.LinkUpdate{OriginalURL: req.OriginalURL, ExpiresAt: req.ExpiresAt}
	if u.Empty() {
		ctx.AbortWithError(http.StatusBadRequest, "nothing to update")
		return
	}
	link, err := h.svc.UpdateLink(ctx.Req.Context(), ctx.Param("code"), auth.OwnerID(ctx.Req.Context()), u)
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp, err := h.toResponse(link)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

func (h *linkHandlers) remove(ctx *gee.Context) {
	if err := h.svc.DeleteLink(ctx.Req.Context(), ctx.Param("code"), auth.OwnerID(ctx.Req.Context())); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *linkHandlers) mine(ctx *gee.Context) {
	links, err := h.svc.ListForOwner(ctx.Req.Context(), auth.OwnerID(ctx.Req.Context()))
	if err != nil {
		writeError(ctx, err)
		return
	}
	h.writeLinks(ctx, links)
}

func (h *linkHandlers) search(ctx *gee.Context) {
	links, err := h.svc.SearchByURLForOwner(ctx.Req.Context(), auth.OwnerID(ctx.Req.Context()), ctx.Query("original_url"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	h.writeLinks(ctx, links)
}
