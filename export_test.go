package pff

type (
	TestDocument = testDocument
	TestSound    = testSound
)

var (
	EncodeVideoChunk = encodeVideoChunk
	TestHeader       = testHeader
	TestPixels       = testPixels
)
