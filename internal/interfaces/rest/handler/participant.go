package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-catalog/internal/participant"
)

// EnterRequest ...
type EnterRequest struct {
	Code string `json:"code"`
}

// ParticipantResponse participant with its resolved display name
type ParticipantResponse struct {
	*participant.Participant
	DisplayName string `json:"display_name"`
}

func newParticipantResponse(p *participant.Participant) *ParticipantResponse {
	return &ParticipantResponse{p, p.DisplayName()}
}

type ParticipantHandler struct {
	participantUseCase participant.ParticipantUseCase
}

func NewParticipantHandler(ParticipantUseCase participant.ParticipantUseCase) *ParticipantHandler {
	return &ParticipantHandler{ParticipantUseCase}
}

func (ph *ParticipantHandler) HandleEnter(c echo.Context) error {
	req := new(EnterRequest)
	if err := c.Bind(req); err != nil {
		return err
	}
	p, err := ph.participantUseCase.Enter(c.Request().Context(), req.Code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newParticipantResponse(p))
}

func (ph *ParticipantHandler) HandleRegister(c echo.Context) error {
	in := new(participant.RegisterInput)
	if err := c.Bind(in); err != nil {
		return err
	}
	p, err := ph.participantUseCase.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newParticipantResponse(p))
}
