package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/cinematch/internal/model"
	"github.com/user/cinematch/internal/utils"
)

// SearchMovies GET /api/movies/search?query=&page=&limit=
func (h *Handler) SearchMovies(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	result, err := h.Movies.SearchMovies(c.Request.Context(), c.Query("query"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, result)
}

// GetMovie GET /api/movies/:id
func (h *Handler) GetMovie(c *gin.Context) {
	id, ok := movieID(c)
	if !ok {
		return
	}

	movie, err := h.Movies.GetMovieByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, movie)
}

// SimilarMovies GET /api/movies/:id/similar?limit=
func (h *Handler) SimilarMovies(c *gin.Context) {
	id, ok := movieID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	movies, err := h.Similarity.FindSimilar(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if movies == nil {
		movies = []model.Movie{}
	}
	utils.Success(c, movies)
}

// CreateMovie POST /api/movies
func (h *Handler) CreateMovie(c *gin.Context) {
	var req model.Movie
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request body")
		return
	}

	movie, err := h.Movies.CreateMovie(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Created(c, movie)
}

func movieID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		utils.BadRequest(c, "invalid movie id")
		return 0, false
	}
	return id, true
}
