package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/chirper/internal/api/middleware"
	"github.com/d60-Lab/chirper/internal/model"
	"github.com/d60-Lab/chirper/internal/service"
	"github.com/d60-Lab/chirper/pkg/response"
)

// profileView 用户资料及关注数
type profileView struct {
	*model.User
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
	// 带 token 查看他人资料时才有
	IsFollowing *bool `json:"is_following,omitempty"`
}

// CreateUser 注册用户
// @Summary 创建用户
// @Tags 用户
// @Accept json
// @Produce json
// @Param request body service.CreateUserRequest true "用户信息"
// @Success 201 {object} response.Response{data=model.User}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response "用户名或邮箱已存在"
// @Router /api/v1/users [post]
func (h *Handler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.userService.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, u)
}

// GetMe 当前登录用户
// @Summary 当前用户资料
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=profileView}
// @Failure 401 {object} response.Response
// @Router /api/v1/users/me [get]
func (h *Handler) GetMe(c *gin.Context) {
	me, _ := middleware.UserID(c)
	u, err := h.userService.GetByID(c.Request.Context(), me)
	if err != nil {
		writeError(c, err)
		return
	}
	h.writeProfile(c, u)
}

// GetUser 按用户名查询资料；带 token 时附上 is_following
// @Summary 用户资料
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Param username path string true "用户名"
// @Success 200 {object} response.Response{data=profileView}
// @Failure 404 {object} response.Response
// @Router /api/v1/users/{username} [get]
func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.userService.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.writeProfile(c, u)
}

func (h *Handler) writeProfile(c *gin.Context, u *model.User) {
	ctx := c.Request.Context()
	followers, following, err := h.relService.Counts(ctx, u.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	view := profileView{User: u, FollowersCount: followers, FollowingCount: following}
	if me, ok := middleware.UserID(c); ok && me != u.ID {
		f, err := h.relService.IsFollowing(ctx, me, u.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		view.IsFollowing = &f
	}
	response.Success(c, view)
}

// UpdateProfile 更新自己的资料
// @Summary 更新资料
// @Tags 用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.UpdateProfileRequest true "要修改的字段"
// @Success 200 {object} response.Response{data=model.User}
// @Failure 400 {object} response.Response
// @Router /api/v1/users/profile [put]
func (h *Handler) UpdateProfile(c *gin.Context) {
	me, _ := middleware.UserID(c)
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.userService.UpdateProfile(c.Request.Context(), me, req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, u)
}
