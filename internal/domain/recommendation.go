package domain

import "sort"

// Recommendation - элемент результата поиска похожих товаров.
// Score - косинусная близость, больше значит похожее.
type Recommendation struct {
	ProductID string
	Name      string
	Score     float32
}

// SortRecommendations упорядочивает по score по убыванию, при равенстве по ID по возрастанию.
func SortRecommendations(items []Recommendation) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ProductID < items[j].ProductID
	})
}
