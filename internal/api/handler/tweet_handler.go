package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/chirper/internal/api/middleware"
	"github.com/d60-Lab/chirper/internal/service"
	"github.com/d60-Lab/chirper/pkg/response"
)

// CreateTweet 发推
// @Summary 发布推文
// @Tags 推文
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateTweetRequest true "推文内容"
// @Success 201 {object} response.Response{data=service.TweetView}
// @Failure 400 {object} response.Response
// @Router /api/v1/tweets [post]
func (h *Handler) CreateTweet(c *gin.Context) {
	me, _ := middleware.UserID(c)
	var req service.CreateTweetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	view, err := h.tweetService.Publish(c.Request.Context(), me, req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, view)
}

// Timeline 首页时间线：自己和关注的人
// @Summary 时间线
// @Tags 推文
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param per_page query int false "每页数量" default(20)
// @Success 200 {object} response.Response
// @Router /api/v1/tweets/timeline [get]
func (h *Handler) Timeline(c *gin.Context) {
	me, _ := middleware.UserID(c)
	page, perPage, ok := h.pageQuery(c)
	if !ok {
		response.BadRequest(c, "page and per_page must be integers")
		return
	}
	tweets, info, err := h.tweetService.Timeline(c.Request.Context(), me, page, perPage)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"tweets": tweets, "total": info.Total, "pages": info.Pages, "current_page": info.CurrentPage, "per_page": info.PerPage})
}

// GetTweet 查询单条推文；登录时附带 is_liked
// @Summary 推文详情
// @Tags 推文
// @Produce json
// @Param id path int true "推文ID"
// @Success 200 {object} response.Response{data=service.TweetView}
// @Failure 404 {object} response.Response
// @Router /api/v1/tweets/{id} [get]
func (h *Handler) GetTweet(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid tweet id")
		return
	}
	viewer, _ := middleware.UserID(c)
	view, err := h.tweetService.Get(c.Request.Context(), id, viewer)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, view)
}

// DeleteTweet 删除自己的推文
// @Summary 删除推文
// @Tags 推文
// @Produce json
// @Security BearerAuth
// @Param id path int true "推文ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/tweets/{id} [delete]
func (h *Handler) DeleteTweet(c *gin.Context) {
	me, _ := middleware.UserID(c)
	id, ok := uintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid tweet id")
		return
	}
	if err := h.tweetService.Delete(c.Request.Context(), id, me); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// LikeTweet 点赞
// @Summary 点赞
// @Tags 推文
// @Produce json
// @Security BearerAuth
// @Param id path int true "推文ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response "已点赞"
// @Router /api/v1/tweets/{id}/like [post]
func (h *Handler) LikeTweet(c *gin.Context) {
	me, _ := middleware.UserID(c)
	id, ok := uintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid tweet id")
		return
	}
	likes, err := h.tweetService.Like(c.Request.Context(), me, id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"status": "liked", "likes_count": likes})
}

// UnlikeTweet 取消点赞；本来没赞也返回 200
// @Summary 取消点赞
// @Tags 推文
// @Produce json
// @Security BearerAuth
// @Param id path int true "推文ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/tweets/{id}/like [delete]
func (h *Handler) UnlikeTweet(c *gin.Context) {
	me, _ := middleware.UserID(c)
	id, ok := uintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid tweet id")
		return
	}
	removed, likes, err := h.tweetService.Unlike(c.Request.Context(), me, id)
	if err != nil {
		writeError(c, err)
		return
	}
	status := "unliked"
	if !removed {
		status = "not_liked"
	}
	response.Success(c, gin.H{"status": status, "likes_count": likes})
}
