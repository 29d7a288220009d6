package fixer

func (e *Engine) registerAll() error {
	for kind, convs := range map[Kind][]Converter{
		Entity:       e.entityConverters(),
		ItemInstance: e.itemConverters(),
		BlockEntity:  e.blockEntityConverters(),
		Chunk:        e.chunkConverters(),
		Options:      e.optionsConverters(),
	} {
		for _, c := range convs {
			e.registerConverter(kind, c)
		}
	}
	for _, c := range e.itemValueConverters() {
		e.registerValue(ItemType, c)
	}
	return e.registerInspectors()
}
