package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"bents-assistant-go/internal/model"
	"bents-assistant-go/internal/repository"
	"bents-assistant-go/pkg/log"
)

// ContactInput 是联系表单的内容。
type ContactInput struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// ContactService 保存联系表单。
type ContactService interface {
	Submit(ctx context.Context, in ContactInput) (*model.Contact, error)
}

type contactService struct {
	repo repository.ContactRepository
}

// NewContactService 创建一个新的 ContactService 实例。
func NewContactService(repo repository.ContactRepository) ContactService {
	return &contactService{repo: repo}
}

func (s *contactService) Submit(ctx context.Context, in ContactInput) (*model.Contact, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	message := strings.TrimSpace(in.Message)
	if name == "" || email == "" || message == "" {
		return nil, fmt.Errorf("%w: name, email and message are required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}

	contact := &model.Contact{
		Name:    name,
		Email:   email,
		Subject: strings.TrimSpace(in.Subject),
		Message: message,
	}
	if err := s.repo.Create(ctx, contact); err != nil {
		log.Errorf("[ContactService] 保存联系表单失败: %v", err)
		return nil, err
	}
	log.Infof("[ContactService] 收到联系表单, id: %d", contact.ID)
	return contact, nil
}
