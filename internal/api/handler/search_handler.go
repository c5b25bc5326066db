package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/chirper/internal/model"
	"github.com/d60-Lab/chirper/internal/service"
	"github.com/d60-Lab/chirper/pkg/response"
)

// Search 全文检索
// @Summary 检索推文与用户资料
// @Tags 检索
// @Produce json
// @Security BearerAuth
// @Param q query string true "查询词，空白分词，任一命中即可"
// @Param type query string false "tweet / profile / all" default(all)
// @Param page query int false "页码" default(1)
// @Param per_page query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=service.SearchPage}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/search [get]
func (h *Handler) Search(c *gin.Context) {
	page, perPage, ok := h.pageQuery(c)
	if !ok {
		response.BadRequest(c, "page and per_page must be integers")
		return
	}
	result, err := h.searchService.Search(c.Request.Context(), service.SearchQuery{
		Query:   c.Query("q"),
		Type:    c.Query("type"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

// IndexContent 写入或覆盖索引文档（服务间内部调用）
// @Summary 索引内容
// @Tags 检索
// @Accept json
// @Produce json
// @Param request body service.IndexRequest true "索引文档"
// @Success 200 {object} response.Response{data=model.SearchDocument}
// @Failure 400 {object} response.Response
// @Router /api/v1/search/index [post]
func (h *Handler) IndexContent(c *gin.Context) {
	var req service.IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	doc, err := h.searchService.Index(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, doc)
}

// RemoveContent 删除索引文档
// @Summary 删除索引
// @Tags 检索
// @Produce json
// @Param type path string true "tweet / profile"
// @Param id path int true "内容ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/search/index/{type}/{id} [delete]
func (h *Handler) RemoveContent(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid content id")
		return
	}
	if err := h.searchService.Remove(c.Request.Context(), model.ContentType(c.Param("type")), id); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"removed": true})
}

// Trending 热门内容
// @Summary 按热度取前 N 条
// @Tags 检索
// @Produce json
// @Param type query string false "tweet / profile" default(tweet)
// @Param limit query int false "条数" default(10)
// @Success 200 {object} response.Response{data=[]model.SearchDocument}
// @Router /api/v1/search/trending [get]
func (h *Handler) Trending(c *gin.Context) {
	limit, ok := intQuery(c, "limit", h.searchCfg.DefaultLimit)
	if !ok {
		response.BadRequest(c, "limit must be an integer")
		return
	}
	docs, err := h.searchService.Trending(c.Request.Context(), model.ContentType(c.Query("type")), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"results": docs, "type": typeOrDefault(c.Query("type")), "count": len(docs)})
}

// Hashtags 话题统计
// @Summary 统计匹配推文中的话题
// @Tags 检索
// @Produce json
// @Param q query string true "查询词"
// @Param limit query int false "条数" default(10)
// @Success 200 {object} response.Response{data=[]search.TagCount}
// @Failure 400 {object} response.Response
// @Router /api/v1/search/hashtags [get]
func (h *Handler) Hashtags(c *gin.Context) {
	limit, ok := intQuery(c, "limit", h.searchCfg.DefaultLimit)
	if !ok {
		response.BadRequest(c, "limit must be an integer")
		return
	}
	tags, err := h.searchService.Hashtags(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"hashtags": tags, "query": c.Query("q")})
}

func typeOrDefault(t string) string {
	if t == "" {
		return string(model.ContentTweet)
	}
	return t
}
