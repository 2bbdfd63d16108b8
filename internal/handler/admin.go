package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/cinematch/internal/model"
	"github.com/user/cinematch/internal/utils"
)

// ==================== 管理接口 ====================

// AdminEmbed POST /admin/embeddings 重新生成全部向量
func (h *Handler) AdminEmbed(c *gin.Context) {
	report, err := h.Embeddings.EmbedAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "embeddings regenerated", report)
}

// AdminImport POST /admin/import 重置两个存储并重新导入数据集
func (h *Handler) AdminImport(c *gin.Context) {
	report, err := h.Importer.RunImport(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "dataset imported", report)
}

// AdminSimilarScored GET /admin/movies/:id/similar/scored 带分数的相似结果，不走缓存
func (h *Handler) AdminSimilarScored(c *gin.Context) {
	id, ok := movieID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	scored, err := h.Similarity.FindSimilarScored(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if scored == nil {
		scored = []model.ScoredMovie{}
	}
	utils.Success(c, scored)
}
