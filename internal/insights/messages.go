package insights

// Languages with a message catalog.
const (
	LangEnglish    = "en"
	LangVietnamese = "vi"
)

type msgKey int

const (
	msgGrowth msgKey = iota
	msgDrop
	msgStable
	msgPeakMonths
	msgLowMonths
	msgPromote
	msgLowPerformers
	msgPrunePortfolio
	msgHighMargin
	msgBestRegion
	msgWeakRegion
	msgSegment
	msgCrossSell
	msgABTest
	msgROAS
	msgSupplyChain
	msgNotEnoughData
)

var catalog = map[string]map[msgKey]string{
	LangEnglish: {
		msgGrowth:         "Revenue in %s grew %.0f%% over %s. Keep increasing ad spend on the channels that are working.",
		msgDrop:           "Revenue fell %.0f%% compared with %s. Review marketing campaigns, pricing, stock and customer feedback for this period.",
		msgStable:         "Revenue is stable (%.0f%% change versus %s). Keep monitoring to catch swings early.",
		msgPeakMonths:     "Seasonal peak: %s sold above average. Build stock ahead of these months.",
		msgLowMonths:      "Seasonal low: %s sold below average. Consider promotions or bundles in these months.",
		msgPromote:        "Increase promotion for '%s': revenue %s, profit %s.",
		msgLowPerformers:  "Products to review for discontinuation or clearance: %s.",
		msgPrunePortfolio: "Optimize the catalogue: drop underperforming SKUs or move them to a clearance strategy.",
		msgHighMargin:     "High-margin products: %s. A small price increase or more advertising could grow profit.",
		msgBestRegion:     "Focus marketing on %s (highest revenue: %s).",
		msgWeakRegion:     "%s trails %s by a wide margin. Check distribution, pricing and promotions there.",
		msgSegment:        "Segment '%s' buys the most (%s). Offer bundles tailored to it.",
		msgCrossSell:      "Run a cross-sell campaign: suggest '%s' to customers viewing '%s'.",
		msgABTest:         "A/B test landing pages or creatives for the two best-selling products to lift conversion.",
		msgROAS:           "Measure ROAS per campaign over the last 30 days and cut budget from low performers.",
		msgSupplyChain:    "Review purchase costs and stock levels for the top SKUs to tighten the supply chain.",
		msgNotEnoughData:  "Not enough data for detailed suggestions. Make sure the file has Date, Product, Quantity and Revenue columns.",
	},
	LangVietnamese: {
		msgGrowth:         "Doanh thu tháng %s tăng %.0f%% so với %s. Tiếp tục tăng ngân sách quảng cáo cho kênh đang hiệu quả.",
		msgDrop:           "Doanh thu giảm %.0f%% so với %s. Kiểm tra chiến dịch marketing, giá, tồn kho và phản hồi khách hàng trong kỳ này.",
		msgStable:         "Doanh thu ổn định (thay đổi %.0f%% so với %s). Tiếp tục theo dõi để phát hiện sớm biến động.",
		msgPeakMonths:     "Mùa cao điểm: các tháng %s có doanh thu trên trung bình. Nên tăng tồn kho trước giai đoạn này.",
		msgLowMonths:      "Mùa thấp điểm: %s có doanh thu dưới trung bình. Cân nhắc khuyến mại hoặc combo trong các tháng này.",
		msgPromote:        "Tăng quảng bá cho '%s': doanh thu %s, lợi nhuận %s.",
		msgLowPerformers:  "Sản phẩm cần xem xét ngừng bán hoặc xả hàng: %s.",
		msgPrunePortfolio: "Tối ưu danh mục: loại bỏ SKU kém hiệu quả hoặc chuyển sang chiến lược xả hàng.",
		msgHighMargin:     "Sản phẩm biên lợi nhuận cao: %s. Có thể tăng nhẹ giá hoặc đầu tư quảng cáo để mở rộng lợi nhuận.",
		msgBestRegion:     "Tập trung marketing tại %s (doanh thu cao nhất: %s).",
		msgWeakRegion:     "Khu vực %s thấp hơn nhiều so với %s. Kiểm tra kênh phân phối, giá và khuyến mãi tại đây.",
		msgSegment:        "Nhóm '%s' mua nhiều nhất (%s). Đề xuất combo sản phẩm phù hợp.",
		msgCrossSell:      "Chạy chiến dịch bán chéo: gợi ý '%s' khi khách xem '%s'.",
		msgABTest:         "Thử nghiệm A/B trang đích hoặc mẫu quảng cáo cho 2 sản phẩm bán chạy nhất để tăng chuyển đổi.",
		msgROAS:           "Đo ROAS theo từng chiến dịch trong 30 ngày gần nhất và cắt ngân sách cho chiến dịch kém hiệu quả.",
		msgSupplyChain:    "Rà soát chi phí nhập hàng và tồn kho cho các SKU chủ lực để tối ưu chuỗi cung ứng.",
		msgNotEnoughData:  "Dữ liệu không đủ để đưa ra gợi ý chi tiết. Vui lòng đảm bảo file có các cột: Ngày, Sản phẩm, Số lượng, Doanh thu.",
	},
}

// NormalizeLang maps a user-supplied language to a catalog key, defaulting
// to English.
func NormalizeLang(lang string) string {
	switch lang {
	case "vi", "vn", "vi-VN", "vi_VN", "vietnamese":
		return LangVietnamese
	}
	return LangEnglish
}
