package handler

import (
	stderrors "errors"
	"net/http"

	"kyb-gateway/errors"
	"kyb-gateway/middleware"
	"kyb-gateway/model"
	"kyb-gateway/repository"

	"github.com/gin-gonic/gin"
)

// TaskHandler 任务处理器
type TaskHandler struct {
	taskRepo repository.TaskRepository
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(taskRepo repository.TaskRepository) *TaskHandler {
	return &TaskHandler{
		taskRepo: taskRepo,
	}
}

// GetTask 获取任务详情
// GET /api/tasks/:task_id
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := h.ownedTask(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// ListTasks 获取任务列表
// GET /api/tasks?limit=10&offset=0
func (h *TaskHandler) ListTasks(c *gin.Context) {
	offset, limit := pagination(c, 10)

	client, ok := middleware.CurrentClient(c)
	if !ok {
		errors.RespondWithError(c, http.StatusUnauthorized, errors.NewInvalidAPIKeyError())
		return
	}

	tasks, err := h.taskRepo.GetTasksByClient(c.Request.Context(), client.ID.Hex(), limit, offset)
	if err != nil {
		errors.RespondWithError(c, http.StatusInternalServerError, errors.NewInternalError("查询任务失败"))
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"tasks":  tasks,
		"limit":  limit,
		"offset": offset,
	})
}

// GetTaskStatus 获取任务状态（简化版）
// GET /api/tasks/:task_id/status
func (h *TaskHandler) GetTaskStatus(c *gin.Context) {
	task, ok := h.ownedTask(c)
	if !ok {
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"task_id":      task.TaskID,
		"status":       task.Status,
		"applicant_id": task.ApplicantID,
		"failed_stage": task.FailedStage,
		"created_at":   task.CreatedAt,
		"completed_at": task.CompletedAt,
		"error":        task.ErrorMessage,
	})
}

// ownedTask 只允许任务所有者访问
func (h *TaskHandler) ownedTask(c *gin.Context) (*model.OnboardingTask, bool) {
	client, ok := middleware.CurrentClient(c)
	if !ok {
		errors.RespondWithError(c, http.StatusUnauthorized, errors.NewInvalidAPIKeyError())
		return nil, false
	}

	task, err := h.taskRepo.GetByTaskID(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			errors.RespondWithError(c, http.StatusNotFound, errors.NewAPIError(errors.ErrTaskNotFound, "任务不存在", nil))
			return nil, false
		}
		errors.RespondWithError(c, http.StatusInternalServerError, errors.NewInternalError("查询任务失败"))
		return nil, false
	}

	if task.ClientID != client.ID.Hex() {
		errors.RespondWithError(c, http.StatusForbidden, errors.NewAPIError(errors.ErrTaskForbidden, "无权访问此任务", nil))
		return nil, false
	}
	return task, true
}
