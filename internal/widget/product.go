package widget

import (
	"fmt"
	"sync"

	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/store"
)

type ProductInfoView struct {
	Ready bool
	Info  analysis.ProductInfo
}

// ProductInfo shows the product name, brand and price.
type ProductInfo struct {
	mu   sync.RWMutex
	view ProductInfoView
}

func NewProductInfo() *ProductInfo {
	return &ProductInfo{}
}

func (w *ProductInfo) Name() string { return "productInfo" }

func (w *ProductInfo) Keys() []store.Key { return keys(store.KeyProductInfo) }

func (w *ProductInfo) Apply(_ store.Key, value any) {
	if info, ok := value.(analysis.ProductInfo); ok {
		w.set(info.WithDefaults())
	}
}

func (w *ProductInfo) ApplyCompletion(p *analysis.Payload) {
	w.set(productOf(p))
}

func (w *ProductInfo) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.view = ProductInfoView{}
}

func (w *ProductInfo) View() ProductInfoView {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.view
}

func (w *ProductInfo) Render() string {
	v := w.View()
	if !v.Ready {
		return card("Product Information", mutedStyle.Render(WaitingText))
	}
	return card("Product Information", fmt.Sprintf("Product: %s\nBrand:   %s\nPrice:   %s", v.Info.Name, v.Info.Brand, v.Info.Price))
}

func (w *ProductInfo) set(info analysis.ProductInfo) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.view = ProductInfoView{Ready: true, Info: info}
}
