package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/chirper/internal/api/middleware"
	"github.com/d60-Lab/chirper/internal/model"
	"github.com/d60-Lab/chirper/internal/search"
	"github.com/d60-Lab/chirper/pkg/response"
)

// userPage 关注 / 粉丝列表
type userPage struct {
	Users []*model.User `json:"users"`
	search.PageInfo
}

// Follow 关注用户
// @Summary 关注用户
// @Tags 关系链
// @Produce json
// @Security BearerAuth
// @Param username path string true "被关注的用户名"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response "不能关注自己"
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response "已关注"
// @Router /api/v1/users/{username}/follow [post]
func (h *Handler) Follow(c *gin.Context) {
	me, _ := middleware.UserID(c)
	target, err := h.userService.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.relService.Follow(c.Request.Context(), me, target.ID); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"status": "followed", "username": target.Username})
}

// Unfollow 取消关注；本来没有关注也返回 200
// @Summary 取消关注
// @Tags 关系链
// @Produce json
// @Security BearerAuth
// @Param username path string true "用户名"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/users/{username}/follow [delete]
func (h *Handler) Unfollow(c *gin.Context) {
	me, _ := middleware.UserID(c)
	target, err := h.userService.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		writeError(c, err)
		return
	}
	removed, err := h.relService.Unfollow(c.Request.Context(), me, target.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	status := "unfollowed"
	if !removed {
		status = "not_following"
	}
	response.Success(c, gin.H{"status": status, "username": target.Username})
}

// ListFollowing 查询某用户关注的人
// @Summary 查询关注列表
// @Tags 关系链
// @Produce json
// @Param username path string true "用户名"
// @Param page query int false "页码" default(1)
// @Param per_page query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=userPage}
// @Router /api/v1/users/{username}/following [get]
func (h *Handler) ListFollowing(c *gin.Context) {
	h.listRelations(c, false)
}

// ListFollowers 查询某用户的粉丝
// @Summary 查询粉丝列表
// @Tags 关系链
// @Produce json
// @Param username path string true "用户名"
// @Param page query int false "页码" default(1)
// @Param per_page query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=userPage}
// @Router /api/v1/users/{username}/followers [get]
func (h *Handler) ListFollowers(c *gin.Context) {
	h.listRelations(c, true)
}

func (h *Handler) listRelations(c *gin.Context, followers bool) {
	page, perPage, ok := h.pageQuery(c)
	if !ok {
		response.BadRequest(c, "page and per_page must be integers")
		return
	}
	ctx := c.Request.Context()
	u, err := h.userService.GetByUsername(ctx, c.Param("username"))
	if err != nil {
		writeError(c, err)
		return
	}
	list := h.relService.ListFollowing
	if followers {
		list = h.relService.ListFollowers
	}
	users, info, err := list(ctx, u.ID, page, perPage)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, userPage{Users: users, PageInfo: info})
}
