// Package repository 提供数据访问层的实现
package repository

import (
	"context"
	"log"

	"gorm.io/gorm"

	"dnc-chat-server/internal/model"
	"dnc-chat-server/pkg/util"
)

// FallbackRuleRepository 兜底应答规则数据访问层
// 规则表由运营人员维护，这里只提供读取和初始化种子数据
type FallbackRuleRepository struct {
	db *gorm.DB
}

// NewFallbackRuleRepository 创建 FallbackRuleRepository 实例
func NewFallbackRuleRepository(db *gorm.DB) *FallbackRuleRepository {
	return &FallbackRuleRepository{db: db}
}

// GetAll 获取全部规则
// 规则表很小（几十条），全量加载后在内存中匹配
// 参数:
//   - ctx: 上下文
//
// 返回:
//   - []model.FallbackRule: 规则列表，按 ID 正序
//   - error: 数据库错误
func (r *FallbackRuleRepository) GetAll(ctx context.Context) ([]model.FallbackRule, error) {
	var rules []model.FallbackRule
	err := r.db.WithContext(ctx).Order("id ASC").Find(&rules).Error
	return rules, err
}

// Seed 在规则表为空时写入默认规则
// 幂等：表里已有数据时直接跳过
// 参数:
//   - ctx: 上下文
//
// 返回:
//   - error: 数据库错误
func (r *FallbackRuleRepository) Seed(ctx context.Context) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.FallbackRule{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	rules := []model.FallbackRule{
		{
			Keywords:   `["xin chào","chào","hello","hi"]`,
			Response:   "Xin chào! Tôi là trợ lý DNC. Bạn cần hỗ trợ gì về khóa học không?",
			Category:   "greeting",
			Confidence: 1.0,
		},
		{
			Keywords:   `["cảm ơn","thank"]`,
			Response:   "Rất vui được hỗ trợ bạn. Chúc bạn học tốt!",
			Category:   "greeting",
			Confidence: 1.0,
		},
		{
			Keywords:   `["học phí","giá","thanh toán"]`,
			Response:   "Bạn có thể xem học phí của từng khóa học tại trang chi tiết khóa học. Hệ thống hỗ trợ thanh toán trực tuyến qua VNPay.",
			Category:   "payment",
			Confidence: 0.9,
		},
		{
			Keywords:   `["chứng chỉ","certificate"]`,
			Response:   "Sau khi hoàn thành toàn bộ bài học và bài kiểm tra của khóa học, hệ thống sẽ tự động cấp chứng chỉ cho bạn.",
			Category:   "certificate",
			Confidence: 0.9,
		},
		{
			Keywords:   `["đăng ký","enroll","ghi danh"]`,
			Response:   "Để đăng ký khóa học, bạn vào trang khóa học và bấm nút Đăng ký. Nếu khóa học có phí, hệ thống sẽ chuyển bạn đến trang thanh toán.",
			Category:   "course",
			Confidence: 0.8,
			ReferenceLink: util.StringPtr("https://dnc.edu.vn/courses"),
		},
	}

	log.Printf("Seeding %d fallback rules", len(rules))
	return r.db.WithContext(ctx).Create(&rules).Error
}
