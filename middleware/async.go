package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"kyb-gateway/errors"
	"kyb-gateway/model"
	"kyb-gateway/pkg/logger"
	"kyb-gateway/pkg/queue"
	"kyb-gateway/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AsyncMiddleware struct {
	taskQueue queue.TaskQueue
	taskRepo  repository.TaskRepository
}

func NewAsyncMiddleware(taskQueue queue.TaskQueue, taskRepo repository.TaskRepository) *AsyncMiddleware {
	return &AsyncMiddleware{
		taskQueue: taskQueue,
		taskRepo:  taskRepo,
	}
}

// HandleAsync 带 X-Async: true 和 X-Callback-URL 的开户请求转为异步任务
func (m *AsyncMiddleware) HandleAsync() gin.HandlerFunc {
	return func(c *gin.Context) {
		callbackURL := c.GetHeader("X-Callback-URL")

		// 如果不是异步请求，继续正常处理
		if c.GetHeader("X-Async") != "true" || callbackURL == "" {
			c.Next()
			return
		}

		client, ok := requireClient(c)
		if !ok {
			return
		}

		if u, err := url.ParseRequestURI(callbackURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors.RespondWithError(c, http.StatusBadRequest, errors.NewInvalidRequestError("X-Callback-URL 无效"))
			return
		}

		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			errors.RespondWithError(c, http.StatusBadRequest, errors.NewInvalidRequestError("读取请求体失败"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		var req model.CompanyRequest
		if err := json.Unmarshal(bodyBytes, &req); err != nil {
			errors.RespondWithError(c, http.StatusBadRequest, errors.NewInvalidRequestError(err.Error()))
			return
		}
		if err := req.Validate(); err != nil {
			errors.RespondWithError(c, http.StatusBadRequest, errors.NewInvalidRequestError(err.Error()))
			return
		}

		task := model.NewOnboardingTask(uuid.NewString(), client.ID.Hex(), req.CompanyName, req.Country, callbackURL)

		if callbackMethod := c.GetHeader("X-Callback-Method"); callbackMethod != "" {
			task.CallbackMethod = strings.ToUpper(callbackMethod)
		}
		if authHeader := c.GetHeader("X-Callback-Auth"); authHeader != "" {
			task.CallbackHeaders = map[string]string{"Authorization": authHeader}
		}

		if err := m.taskRepo.Create(c.Request.Context(), task); err != nil {
			logger.Errorf("Failed to create task: %v", err)
			errors.RespondWithError(c, http.StatusInternalServerError, errors.NewInternalError("创建任务失败"))
			return
		}

		if err := m.taskQueue.Enqueue(c.Request.Context(), task.TaskID); err != nil {
			logger.Errorf("Failed to enqueue task %s: %v", task.TaskID, err)
			task.MarkFailed(model.StageEnqueue, "", "enqueue: "+err.Error())
			if err := m.taskRepo.Update(c.Request.Context(), task); err != nil {
				logger.Errorf("Failed to mark task %s as failed: %v", task.TaskID, err)
			}
			errors.RespondWithError(c, http.StatusServiceUnavailable,
				errors.NewAPIError(errors.ErrAsyncQueueFull, "任务队列不可用，请稍后重试", nil))
			return
		}

		logger.Infof("Onboarding task %s accepted for client %s", task.TaskID, client.ID.Hex())

		c.JSON(http.StatusAccepted, gin.H{
			"code":    0,
			"message": "任务已接受，将异步处理",
			"data": gin.H{
				"task_id":      task.TaskID,
				"status":       task.Status,
				"callback_url": callbackURL,
				"created_at":   task.CreatedAt,
			},
		})

		// 阻止后续处理
		c.Abort()
	}
}
