package domain

// Image - полезная нагрузка изображения, передаваемая на извлечение.
type Image struct {
	Name     string // исходное имя файла (для логов и метаданных)
	Data     []byte
	MimeType string
}

// StoredImage описывает изображение, которое хранится в S3
type StoredImage struct {
	ID        string // uuid
	Bucket    string
	ObjectKey string
	Bytes     []byte
	// Передайте значение -1 в Size, если размер потока неизвестен
	// (внимание: при передаче значения -1 будет выделен большой объем памяти).
	Size        int64
	ContentType string
}

func NewStoredImage(id, bucket, objectKey string, data []byte, contentType string) *StoredImage {
	return &StoredImage{
		ID:          id,
		Bucket:      bucket,
		ObjectKey:   objectKey,
		Bytes:       data,
		Size:        int64(len(data)),
		ContentType: contentType,
	}
}
